package report

import (
	"encoding/json"
	"fmt"

	"github.com/tmaxmax/abiprobe/pkg/probe"
)

type jsonReport struct {
	*probe.Matrix
	Summary map[probe.Outcome]int `json:"summary"`
}

// JSON renders m as an indented JSON document with an outcome summary.
func JSON(m *probe.Matrix) ([]byte, error) {
	data, err := json.MarshalIndent(jsonReport{Matrix: m, Summary: m.Counts()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: failed to encode matrix: %w", err)
	}
	return append(data, '\n'), nil
}
