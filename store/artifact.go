// Package store records build artifacts in a SQLite database. Each
// artifact is a CBOR-encoded record of one transpiled file: where it came
// from, what it hashed to and which conditionals the oblivious transform
// rewrote.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/obli/compiler"
)

// Artifact is one recorded build result.
type Artifact struct {
	Key       string     `cbor:"1,keyasint"`
	Path      string     `cbor:"2,keyasint"` // source file, relative to the project
	Target    string     `cbor:"3,keyasint"`
	Version   string     `cbor:"4,keyasint"` // obli version that produced it
	Structure string     `cbor:"5,keyasint"` // structure hash of the transformed program
	Code      string     `cbor:"6,keyasint"`
	Preserved int        `cbor:"7,keyasint"`
	Rewritten int        `cbor:"8,keyasint"`
	Decisions []Decision `cbor:"9,keyasint,omitempty"`
	Warnings  []string   `cbor:"10,keyasint,omitempty"`
	CreatedAt int64      `cbor:"11,keyasint"` // unix seconds
}

// Decision is the recorded outcome for a single conditional.
type Decision struct {
	Line      int    `cbor:"1,keyasint"`
	Column    int    `cbor:"2,keyasint"`
	EndLine   int    `cbor:"3,keyasint"`
	EndColumn int    `cbor:"4,keyasint"`
	Mode      string `cbor:"5,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Key derives the address of an artifact. Rebuilding a file with the same
// structure, target and tool version gives the same key; alpha-equivalent
// files at different paths get distinct keys.
func Key(path, structure, target, version string) string {
	h := sha256.New()
	for _, part := range []string{version, target, path, structure} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewArtifact assembles an artifact from a transform report.
func NewArtifact(path, target, version, structure, code string, report *compiler.Report, warnings []string) *Artifact {
	a := &Artifact{
		Key:       Key(path, structure, target, version),
		Path:      path,
		Target:    target,
		Version:   version,
		Structure: structure,
		Code:      code,
		Warnings:  warnings,
		CreatedAt: time.Now().Unix(),
	}
	if report != nil {
		a.Preserved, a.Rewritten = report.Preserved, report.Rewritten
		for _, d := range report.Decisions {
			a.Decisions = append(a.Decisions, Decision{
				Line:      d.Span.Start.Line,
				Column:    d.Span.Start.Column,
				EndLine:   d.Span.End.Line,
				EndColumn: d.Span.End.Column,
				Mode:      d.Mode.String(),
			})
		}
	}
	return a
}

// Marshal serializes an artifact to canonical CBOR.
func Marshal(a *Artifact) ([]byte, error) {
	return encMode.Marshal(a)
}

// Unmarshal deserializes an artifact from CBOR.
func Unmarshal(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("store: unmarshal artifact: %w", err)
	}
	return &a, nil
}
