// Copyright 2026 The Workery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provision

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Tag is a seeded label.
type Tag struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SkillSet is a seeded skill an associate may hold.
type SkillSet struct {
	Category    string `yaml:"category"`
	SubCategory string `yaml:"sub_category"`
	Description string `yaml:"description"`
}

// HowHearOption is a seeded "how did you hear about us" answer.
type HowHearOption struct {
	Text       string `yaml:"text"`
	SortNumber int    `yaml:"sort_number"`
}

// Seed is the initial data of a franchise schema.
type Seed struct {
	Tags           []Tag           `yaml:"tags"`
	SkillSets      []SkillSet      `yaml:"skill_sets"`
	HowHearOptions []HowHearOption `yaml:"how_hear_options"`
}

// LoadSeed parses the embedded seed file.
func LoadSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// ParseSeed parses and checks seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	for i, t := range seed.Tags {
		if t.Name == "" {
			return nil, fmt.Errorf("seed tag %d has no name", i)
		}
	}
	for i, s := range seed.SkillSets {
		if s.Category == "" || s.SubCategory == "" {
			return nil, fmt.Errorf("seed skill set %d needs category and sub_category", i)
		}
	}
	return &seed, nil
}
