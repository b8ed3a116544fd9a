package main

import (
	"fmt"
	"os"

	"resumelab/api/internal/mutation"

	"gopkg.in/yaml.v3"
)

// editsFile is the on-disk edit batch. YAML is a superset of JSON, so the
// same loader reads both.
type editsFile struct {
	Operations []mutation.Spec    `yaml:"operations"`
	Proposal   *mutation.Proposal `yaml:"proposal"`
}

func loadEdits(path string) ([]mutation.Operation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edits: %w", err)
	}
	return parseEdits(data)
}

// parseEdits returns explicit operations first, then the proposal's.
func parseEdits(data []byte) ([]mutation.Operation, error) {
	var file editsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode edits: %w", err)
	}

	ops := make([]mutation.Operation, 0, len(file.Operations))
	for i, spec := range file.Operations {
		op, err := spec.Operation()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	if file.Proposal != nil {
		ops = append(ops, file.Proposal.Operations()...)
	}
	if len(ops) == 0 {
		return nil, mutation.ErrEmptyProposal
	}
	return ops, nil
}
