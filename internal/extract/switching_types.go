package extract

// ProductType is the kind of switching-material product. The Dutch literal
// is the value written to the spreadsheet sinks.
type ProductType string

const (
	ProductSwitch     ProductType = "schakelaar"
	ProductSocket     ProductType = "stopcontact"
	ProductDimmer     ProductType = "dimmer"
	ProductPushButton ProductType = "drukknop"
	ProductFrame      ProductType = "frame"
	ProductModule     ProductType = "module"
	ProductBlankPlate ProductType = "blindplaat"
)

type SwitchType string

const (
	SwitchSingle       SwitchType = "enkelpolig"
	SwitchDouble       SwitchType = "dubbelpolig"
	SwitchCrossover    SwitchType = "wisselschakelaar"
	SwitchIntermediate SwitchType = "kruisschakelaar"
	SwitchPushButton   SwitchType = "drukknop"
	SwitchSeries       SwitchType = "serieschakelaar"
)

type SocketType string

const (
	SocketSchuko SocketType = "schuko"
	SocketFrench SocketType = "frans"
	SocketUSB    SocketType = "usb"
	SocketData   SocketType = "data"
	SocketPhone  SocketType = "telefoon"
	SocketTVSat  SocketType = "tv/sat"
)

// socketTerms is scanned in order; the first term found in the text wins.
var socketTerms = []struct {
	term   string
	socket SocketType
}{
	{"schuko", SocketSchuko},
	{"frans", SocketFrench},
	{"usb", SocketUSB},
	{"data", SocketData},
	{"rj45", SocketData},
	{"telefoon", SocketPhone},
	{"tv", SocketTVSat},
	{"sat", SocketTVSat},
	{"antenne", SocketTVSat},
}

// colorNames maps matched color words to the Dutch canonical color.
var colorNames = map[string]string{
	"wit": "wit", "white": "wit", "weiss": "wit",
	"zwart": "zwart", "black": "zwart", "schwarz": "zwart", "antraciet": "zwart",
	"grijs": "grijs", "grey": "grijs", "gray": "grijs",
	"rvs": "rvs", "inox": "rvs", "stainless": "rvs", "steel": "rvs",
	"brons": "brons", "bronze": "brons",
	"goud": "goud", "gold": "goud", "messing": "goud", "brass": "goud",
	"aluminium": "aluminium", "alu": "aluminium", "silver": "aluminium",
}

var frameSlotWords = map[string]int{
	"single": 1,
	"double": 2,
	"triple": 3,
	"quad":   4,
}
