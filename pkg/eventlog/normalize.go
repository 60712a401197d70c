package eventlog

import "strings"

var labelReplacer = strings.NewReplacer(
	"_", "",
	"-", "",
	" ", "",
	"(", "",
	")", "",
)

// NormalizeLabel strips separators and brackets from an activity name and
// lowercases it, so that "O_SENT-COMPLETE" and "osentcomplete" name the same
// proposition in LTLf formulas.
func NormalizeLabel(s string) string {
	return strings.ToLower(labelReplacer.Replace(s))
}
