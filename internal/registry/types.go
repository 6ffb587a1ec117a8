package registry

// Mode labels how a case drives the conversation.
const (
	ModeSingleTurn = "single-turn"
	ModeMultiTurn  = "multi-turn"
)

// Case is one scripted scenario from the catalog. Loaded once, never
// mutated afterwards.
type Case struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags,omitempty"`
	Mode     string   `yaml:"mode"`
	File     string   `yaml:"file"`

	// Conversation holds the ordered user turns for multi-turn cases.
	Conversation []string `yaml:"conversation,omitempty"`

	ExpectedSchema    []string `yaml:"expected_schema,omitempty"`
	RequiredEvidence  []string `yaml:"required_evidence,omitempty"`
	ForbiddenEvidence []string `yaml:"forbidden_evidence,omitempty"`
	RequiredTools     []string `yaml:"required_tools,omitempty"`

	Rubric *Rubric `yaml:"rubric,omitempty"`

	Fixtures FixtureRefs `yaml:"fixtures,omitempty"`

	TurnAssertions []TurnAssertion `yaml:"turn_assertions,omitempty"`
}

// Rubric is a qualitative checklist with a minimum passing score.
type Rubric struct {
	MinScore int      `yaml:"min_score"`
	Criteria []string `yaml:"criteria"`
}

// FixtureRefs names the fixture documents composed for a case.
type FixtureRefs struct {
	Overrides string   `yaml:"overrides,omitempty"`
	Extra     []string `yaml:"extra,omitempty"`
}

// TurnAssertion declares per-turn expectations for a multi-turn case,
// checked against that turn's response only.
type TurnAssertion struct {
	// Turn counts from 1 to the conversation length.
	Turn             int      `yaml:"turn"`
	RequiredTools    []string `yaml:"required_tools,omitempty"`
	RequiredEvidence []string `yaml:"required_evidence,omitempty"`
}

// Registry is the loaded case catalog plus the prompt extracted from each
// case body.
type Registry struct {
	Cases   []Case
	Prompts map[string]string // case id -> first user utterance, if found
}

// Prompt returns the extracted user prompt for a case id.
func (r *Registry) Prompt(caseID string) (string, bool) {
	if r == nil || r.Prompts == nil {
		return "", false
	}
	p, ok := r.Prompts[caseID]
	return p, ok
}
