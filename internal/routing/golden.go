package routing

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// NoTool is the prediction for prompts that should not select a tool.
const NoTool = "NONE"

// Bucket names in report order.
const (
	BucketDirect   = "direct"
	BucketIndirect = "indirect"
	BucketNegative = "negative"
)

// Buckets lists every bucket in report order.
var Buckets = []string{BucketDirect, BucketIndirect, BucketNegative}

// Case is one golden prompt.
type Case struct {
	Prompt       string `yaml:"prompt"`
	ExpectedTool string `yaml:"expected_tool"`
}

// Expected returns the tool the case should route to, or NoTool.
func (c Case) Expected() string {
	if tool := strings.TrimSpace(c.ExpectedTool); tool != "" {
		return tool
	}
	return NoTool
}

// Golden is the bucketed prompt set.
type Golden struct {
	Direct   []Case `yaml:"direct"`
	Indirect []Case `yaml:"indirect"`
	Negative []Case `yaml:"negative"`
}

// Bucket returns the cases of the named bucket.
func (g *Golden) Bucket(name string) []Case {
	switch name {
	case BucketDirect:
		return g.Direct
	case BucketIndirect:
		return g.Indirect
	case BucketNegative:
		return g.Negative
	}
	return nil
}

//go:embed golden.yaml
var goldenYAML []byte

// LoadGolden parses the embedded golden prompts.
func LoadGolden() (*Golden, error) {
	return ParseGolden(goldenYAML)
}

// ParseGolden parses a golden prompt document and checks that every bucket
// has at least three non-empty prompts.
func ParseGolden(data []byte) (*Golden, error) {
	var g Golden
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse golden prompts: %w", err)
	}
	for _, name := range Buckets {
		cases := g.Bucket(name)
		if len(cases) < 3 {
			return nil, fmt.Errorf("golden bucket %s needs at least 3 prompts, has %d", name, len(cases))
		}
		for i, c := range cases {
			if strings.TrimSpace(c.Prompt) == "" {
				return nil, fmt.Errorf("golden bucket %s: prompt %d is empty", name, i)
			}
		}
	}
	return &g, nil
}
