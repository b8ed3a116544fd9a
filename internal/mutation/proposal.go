package mutation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SkillsAnchor is the heading that proposed skills are appended to.
const SkillsAnchor = "SKILLS"

// ErrEmptyProposal indicates a proposal carries no edits at all.
var ErrEmptyProposal = errors.New("mutation: proposal has no edits")

// Enhancement asks for a new bullet after an existing one.
type Enhancement struct {
	AnchorBullet   string `json:"anchor_bullet" yaml:"anchor_bullet"`
	NewBulletToAdd string `json:"new_bullet_to_add" yaml:"new_bullet_to_add"`
}

// BulletChange is a verbatim rewrite of an existing bullet.
type BulletChange struct {
	Find    string `json:"find" yaml:"find"`
	Replace string `json:"replace" yaml:"replace"`
}

// Proposal is the edit set returned by the optimisation collaborator.
type Proposal struct {
	SkillsToAdd         []string       `json:"skills_to_add" yaml:"skills_to_add"`
	ProjectEnhancements []Enhancement  `json:"project_enhancements" yaml:"project_enhancements"`
	BulletPointChanges  []BulletChange `json:"bullet_point_changes" yaml:"bullet_point_changes"`
}

// Empty reports whether p proposes nothing.
func (p Proposal) Empty() bool {
	return len(p.SkillsToAdd) == 0 && len(p.ProjectEnhancements) == 0 && len(p.BulletPointChanges) == 0
}

// Operations orders the proposal as skills, then insertions, then rewrites.
func (p Proposal) Operations() []Operation {
	ops := make([]Operation, 0, 1+len(p.ProjectEnhancements)+len(p.BulletPointChanges))
	if len(p.SkillsToAdd) > 0 {
		ops = append(ops, AppendToList{AnchorPrefix: SkillsAnchor, Items: p.SkillsToAdd})
	}
	for _, e := range p.ProjectEnhancements {
		ops = append(ops, InsertAfterAnchor{AnchorSubstring: e.AnchorBullet, NewText: e.NewBulletToAdd})
	}
	for _, c := range p.BulletPointChanges {
		ops = append(ops, FindAndReplace{Find: c.Find, Replace: c.Replace})
	}
	return ops
}

// Spec is the tagged JSON form of a single operation:
//
//	{"op": "append_to_list", "anchorPrefix": "SKILLS", "items": ["Go"]}
type Spec struct {
	Op              Kind     `json:"op" yaml:"op"`
	AnchorPrefix    string   `json:"anchorPrefix,omitempty" yaml:"anchorPrefix,omitempty"`
	Items           []string `json:"items,omitempty" yaml:"items,omitempty"`
	AnchorSubstring string   `json:"anchorSubstring,omitempty" yaml:"anchorSubstring,omitempty"`
	NewText         string   `json:"newText,omitempty" yaml:"newText,omitempty"`
	Find            string   `json:"find,omitempty" yaml:"find,omitempty"`
	Replace         string   `json:"replace,omitempty" yaml:"replace,omitempty"`
}

// Operation converts the spec into its variant.
func (s Spec) Operation() (Operation, error) {
	switch s.Op {
	case KindAppendToList:
		return AppendToList{AnchorPrefix: s.AnchorPrefix, Items: s.Items}, nil
	case KindInsertAfterAnchor:
		return InsertAfterAnchor{AnchorSubstring: s.AnchorSubstring, NewText: s.NewText}, nil
	case KindFindAndReplace:
		return FindAndReplace{Find: s.Find, Replace: s.Replace}, nil
	default:
		return nil, fmt.Errorf("mutation: unknown operation %q", s.Op)
	}
}

// DecodeOperations parses a JSON array of specs. Unknown operation names
// fail the whole decode; anchors are only checked when the batch runs.
func DecodeOperations(data []byte) ([]Operation, error) {
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	ops := make([]Operation, 0, len(specs))
	for i, spec := range specs {
		op, err := spec.Operation()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
