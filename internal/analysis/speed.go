package analysis

import (
	"regexp"
	"strconv"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// reSpeed matches a decimal number immediately followed by a throughput unit,
// e.g. "1.20s/it" or "3.45it/s" as printed by tqdm progress bars.
var reSpeed = regexp.MustCompile(`(\d+\.\d*|\.\d+|\d+)(s/it|it/s)`)

// ExtractSpeeds returns every speed sample found in logs, in textual order,
// normalized to canonical. Samples that would need reciprocating from zero are
// dropped. Returns an empty slice (never nil) when there is nothing to report.
func ExtractSpeeds(logs string, canonical models.Unit) []float64 {
	matches := reSpeed.FindAllStringSubmatch(logs, -1)
	speeds := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		converted, ok := Convert(v, models.Unit(m[2]), canonical)
		if !ok {
			continue
		}
		speeds = append(speeds, converted)
	}
	return speeds
}

// Convert expresses v (measured in from) in the to unit. The reciprocal of zero
// is undefined, so ok is false when a zero value would have to be converted.
func Convert(v float64, from, to models.Unit) (float64, bool) {
	if from == to {
		return v, true
	}
	if v == 0 {
		return 0, false
	}
	return 1 / v, true
}
