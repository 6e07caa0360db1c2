package main

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// collectURLs merges -url, -urls and -file input, dropping blanks, comment
// lines and duplicates while keeping first-seen order.
func collectURLs(single, list, file string) ([]string, error) {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "#") || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	add(single)
	for _, u := range strings.Split(list, ",") {
		add(u)
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		lines, err := readLines(f)
		if err != nil {
			return nil, err
		}
		for _, u := range lines {
			add(u)
		}
	}

	return urls, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
