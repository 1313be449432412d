package simulator

const (
	ImageRows  = 480
	ImageWidth = 640
)

// DefaultTable is the stock camera command set.
func DefaultTable() map[string][][]byte {
	ok := []byte("ISOK")
	return map[string][][]byte{
		"RESET":  {ok},
		"FILTER": {ok},
		"STATUS": {[]byte("MYSTATUS")},
		"IMAGE":  ImageRowsPattern(ImageRows, ImageWidth),
	}
}

// ImageRowsPattern builds the test image: row n starts with n/100 and n%100,
// every later byte i holds i&0x7f.
func ImageRowsPattern(rows, width int) [][]byte {
	out := make([][]byte, rows)
	for n := range out {
		row := make([]byte, width)
		for i := range row {
			switch i {
			case 0:
				row[i] = byte(n / 100)
			case 1:
				row[i] = byte(n % 100)
			default:
				row[i] = byte(i & 0x7f)
			}
		}
		out[n] = row
	}
	return out
}

// Flatten concatenates reply datagrams into the payload a controller
// reassembles.
func Flatten(datagrams [][]byte) []byte {
	total := 0
	for _, d := range datagrams {
		total += len(d)
	}
	out := make([]byte, 0, total)
	for _, d := range datagrams {
		out = append(out, d...)
	}
	return out
}
