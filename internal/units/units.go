// Package units formats byte counts for human-readable progress and pretty-print output.
package units

import "fmt"

var suffixes = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB"}

// HumanSize renders a byte count using decimal (1000-based) SI suffixes,
// matching the precision the registry client uses in its progress display.
func HumanSize(size float64) string {
	i := 0
	for size >= 1000 && i < len(suffixes)-1 {
		size /= 1000
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.3f%s", size, suffixes[i])
	}
	return fmt.Sprintf("%.3f%s", size, suffixes[i])
}
