package permissions

import (
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Permission is a single bit of a Set.
type Permission uint16

const (
	UpdateSpaceInfo Permission = 1 << iota
	UpdateSpacePoints
	UpdateQuestionInfo
	UpdateQuestionDeadline
	UpdateQuestionPoints
	CreateFixedQuestion
	CreateOpenQuestion
	VetoFixedQuestion
	VetoOpenQuestion
	VetoOpenQuestionOption
	LiftVetoFixedQuestion
	LiftVetoOpenQuestion
	LiftVetoOpenQuestionOption
	AddOpenQuestionOption
)

// All lists every permission in canonical order.
var All = []Permission{
	UpdateSpaceInfo,
	UpdateSpacePoints,
	UpdateQuestionInfo,
	UpdateQuestionDeadline,
	UpdateQuestionPoints,
	CreateFixedQuestion,
	CreateOpenQuestion,
	VetoFixedQuestion,
	VetoOpenQuestion,
	VetoOpenQuestionOption,
	LiftVetoFixedQuestion,
	LiftVetoOpenQuestion,
	LiftVetoOpenQuestionOption,
	AddOpenQuestionOption,
}

var names = map[Permission]string{
	UpdateSpaceInfo:            "UpdateSpaceInfo",
	UpdateSpacePoints:          "UpdateSpacePoints",
	UpdateQuestionInfo:         "UpdateQuestionInfo",
	UpdateQuestionDeadline:     "UpdateQuestionDeadline",
	UpdateQuestionPoints:       "UpdateQuestionPoints",
	CreateFixedQuestion:        "CreateFixedQuestion",
	CreateOpenQuestion:         "CreateOpenQuestion",
	VetoFixedQuestion:          "VetoFixedQuestion",
	VetoOpenQuestion:           "VetoOpenQuestion",
	VetoOpenQuestionOption:     "VetoOpenQuestionOption",
	LiftVetoFixedQuestion:      "LiftVetoFixedQuestion",
	LiftVetoOpenQuestion:       "LiftVetoOpenQuestion",
	LiftVetoOpenQuestionOption: "LiftVetoOpenQuestionOption",
	AddOpenQuestionOption:      "AddOpenQuestionOption",
}

// older deployments name UpdateSpacePoints this way
const legacyUpdateSpacePoints = "UpdateSpaceDefaultPoints"

func (p Permission) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return "Unknown"
}

func ParsePermission(name string) (Permission, bool) {
	if name == legacyUpdateSpacePoints {
		return UpdateSpacePoints, true
	}
	for p, n := range names {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// Set is the 14 permission keys packed into one integer.
type Set uint16

const AllSet = Set(1<<14 - 1)

func SetOf(ps ...Permission) Set {
	var s Set
	for _, p := range ps {
		s |= Set(p)
	}
	return s
}

func (s Set) Has(p Permission) bool {
	return s&Set(p) != 0
}

func (s Set) With(p Permission) Set {
	return s | Set(p)
}

func (s Set) Without(p Permission) Set {
	return s &^ Set(p)
}

// Contains reports whether every permission in o is also in s.
func (s Set) Contains(o Set) bool {
	return s&o == o
}

func (s Set) Names() []string {
	var out []string
	for _, p := range All {
		if s.Has(p) {
			out = append(out, p.String())
		}
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// Flags is the JSON shape of a Set: all 14 keys, always present.
type Flags struct {
	UpdateSpaceInfo            bool `json:"UpdateSpaceInfo"`
	UpdateSpacePoints          bool `json:"UpdateSpacePoints"`
	UpdateQuestionInfo         bool `json:"UpdateQuestionInfo"`
	UpdateQuestionDeadline     bool `json:"UpdateQuestionDeadline"`
	UpdateQuestionPoints       bool `json:"UpdateQuestionPoints"`
	CreateFixedQuestion        bool `json:"CreateFixedQuestion"`
	CreateOpenQuestion         bool `json:"CreateOpenQuestion"`
	VetoFixedQuestion          bool `json:"VetoFixedQuestion"`
	VetoOpenQuestion           bool `json:"VetoOpenQuestion"`
	VetoOpenQuestionOption     bool `json:"VetoOpenQuestionOption"`
	LiftVetoFixedQuestion      bool `json:"LiftVetoFixedQuestion"`
	LiftVetoOpenQuestion       bool `json:"LiftVetoOpenQuestion"`
	LiftVetoOpenQuestionOption bool `json:"LiftVetoOpenQuestionOption"`
	AddOpenQuestionOption      bool `json:"AddOpenQuestionOption"`
}

func (s Set) Flags() Flags {
	return Flags{
		UpdateSpaceInfo:            s.Has(UpdateSpaceInfo),
		UpdateSpacePoints:          s.Has(UpdateSpacePoints),
		UpdateQuestionInfo:         s.Has(UpdateQuestionInfo),
		UpdateQuestionDeadline:     s.Has(UpdateQuestionDeadline),
		UpdateQuestionPoints:       s.Has(UpdateQuestionPoints),
		CreateFixedQuestion:        s.Has(CreateFixedQuestion),
		CreateOpenQuestion:         s.Has(CreateOpenQuestion),
		VetoFixedQuestion:          s.Has(VetoFixedQuestion),
		VetoOpenQuestion:           s.Has(VetoOpenQuestion),
		VetoOpenQuestionOption:     s.Has(VetoOpenQuestionOption),
		LiftVetoFixedQuestion:      s.Has(LiftVetoFixedQuestion),
		LiftVetoOpenQuestion:       s.Has(LiftVetoOpenQuestion),
		LiftVetoOpenQuestionOption: s.Has(LiftVetoOpenQuestionOption),
		AddOpenQuestionOption:      s.Has(AddOpenQuestionOption),
	}
}

func (f Flags) Set() Set {
	var s Set
	for p, on := range map[Permission]bool{
		UpdateSpaceInfo:            f.UpdateSpaceInfo,
		UpdateSpacePoints:          f.UpdateSpacePoints,
		UpdateQuestionInfo:         f.UpdateQuestionInfo,
		UpdateQuestionDeadline:     f.UpdateQuestionDeadline,
		UpdateQuestionPoints:       f.UpdateQuestionPoints,
		CreateFixedQuestion:        f.CreateFixedQuestion,
		CreateOpenQuestion:         f.CreateOpenQuestion,
		VetoFixedQuestion:          f.VetoFixedQuestion,
		VetoOpenQuestion:           f.VetoOpenQuestion,
		VetoOpenQuestionOption:     f.VetoOpenQuestionOption,
		LiftVetoFixedQuestion:      f.LiftVetoFixedQuestion,
		LiftVetoOpenQuestion:       f.LiftVetoOpenQuestion,
		LiftVetoOpenQuestionOption: f.LiftVetoOpenQuestionOption,
		AddOpenQuestionOption:      f.AddOpenQuestionOption,
	} {
		if on {
			s = s.With(p)
		}
	}
	return s
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Flags())
}

// UnmarshalJSON accepts any subset of the keys, including the legacy name of
// UpdateSpacePoints. Missing keys are false.
func (s *Set) UnmarshalJSON(b []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	parsed, err := ParseMap(m)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseMap reads a permission->bool map into a Set of the keys set to true.
func ParseMap(m map[string]bool) (Set, error) {
	var s Set
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p, ok := ParsePermission(k)
		if !ok {
			return 0, errors.Errorf("unknown permission %q", k)
		}
		if m[k] {
			s = s.With(p)
		}
	}
	return s, nil
}
