package analysis

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// DefaultNodePrefix is the hostname marker of the cluster's compute nodes.
const DefaultNodePrefix = "dgx"

// Markers searched for in `runai describe job` output.
const (
	markerNotFound = "could not find any job"
	markerFailed   = "ERROR"
	markerPending  = "PENDING"
	podHeader      = "POD"
)

var reDefaultNode = compileNodePattern(DefaultNodePrefix)

// ErrNodeNotFound means a running job's description carries no node hostname.
var ErrNodeNotFound = errors.New("node hostname not found in job description")

// Resolver turns a job's description and logs into a JobObservation.
// Zero value uses DefaultNodePrefix.
type Resolver struct {
	nodePattern *regexp.Regexp
}

// NewResolver builds a Resolver recognizing nodes named <prefix><word chars>.
func NewResolver(nodePrefix string) *Resolver {
	if nodePrefix == "" {
		nodePrefix = DefaultNodePrefix
	}
	return &Resolver{nodePattern: compileNodePattern(nodePrefix)}
}

func compileNodePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(prefix) + `[\w-]+/`)
}

// ShortCircuit reports the terminal status a description implies on its own.
// When ok is true the job's logs need not be fetched.
func (r *Resolver) ShortCircuit(description string) (models.JobObservation, bool) {
	switch {
	case strings.Contains(description, markerNotFound):
		return models.JobObservation{Status: models.JobStatusNotFound, Node: models.NodeJobNotFound}, true
	case strings.Contains(description, markerFailed):
		return models.JobObservation{Status: models.JobStatusFailed}, true
	case strings.Contains(description, markerPending):
		return models.JobObservation{Status: models.JobStatusPending}, true
	}
	return models.JobObservation{}, false
}

// Resolve classifies the job and, when it is running, extracts its samples,
// node and age. A running job whose description names no node is an error.
func (r *Resolver) Resolve(description, logs string, canonical models.Unit) (models.JobObservation, error) {
	if obs, ok := r.ShortCircuit(description); ok {
		return obs, nil
	}

	samples := ExtractSpeeds(logs, canonical)
	if len(samples) == 0 {
		return models.JobObservation{Status: models.JobStatusJustStarted}, nil
	}

	node, err := r.Node(description)
	if err != nil {
		return models.JobObservation{}, err
	}

	return models.JobObservation{
		Status:  models.JobStatusRunning,
		Node:    node,
		Samples: samples,
		Age:     Age(description),
	}, nil
}

// Node returns the first node hostname that appears as a path component.
func (r *Resolver) Node(description string) (string, error) {
	re := r.nodePattern
	if re == nil {
		re = reDefaultNode
	}
	m := re.FindString(description)
	if m == "" {
		return "", ErrNodeNotFound
	}
	return strings.TrimSuffix(m, "/"), nil
}

// Age reads the job age from the row following the pods table header.
// Returns "" when the description has no such row.
func Age(description string) string {
	lines := strings.Split(description, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, podHeader) {
			continue
		}
		if i+1 >= len(lines) {
			return ""
		}
		fields := strings.Fields(lines[i+1])
		if len(fields) < 2 {
			return ""
		}
		return fields[len(fields)-2]
	}
	return ""
}

// ResolveError attaches the job id to a resolution failure.
func ResolveError(jobID string, err error) error {
	return fmt.Errorf("resolve job %s: %w", jobID, err)
}
