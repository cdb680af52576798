package core

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with binary units, e.g. "512 B" or "1.50 MB".
// Negative counts render as "0 B".
func FormatBytes(n int64) string {
	if n < 1024 {
		if n < 0 {
			n = 0
		}
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n) / 1024
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, byteUnits[unit])
}
