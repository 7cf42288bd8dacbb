// Package proto defines the shared vocabulary of the requirements pipeline:
// the conversation Stage enum, the analyzer result contract, page analysis
// records, and the final specification payload.
package proto

// Stage identifies a project's position in the conversation state machine.
// Transitions are forward-only; only an explicit reset returns a user to
// StageLinkCollection, and it does so by replacing the whole project.
type Stage string

const (
	StageLinkCollection            Stage = "link_collection"
	StageConversationDeepening     Stage = "conversation_deepening"
	StageRequirementsClarification Stage = "requirements_clarification"
	StageTechnicalDetails          Stage = "technical_details"
	StageProjectSummary            Stage = "project_summary_and_schema"
	StageAwaitingConfirmation      Stage = "awaiting_final_confirmation"
	StageConfirmedReady            Stage = "confirmed_ready_for_generation"
	StageScraperGenerated          Stage = "scraper_generated"
)

// stageOrder defines forward progression. Higher index = later stage.
//
//nolint:gochecknoglobals // Closed enum ordering table
var stageOrder = map[Stage]int{
	StageLinkCollection:            0,
	StageConversationDeepening:     1,
	StageRequirementsClarification: 2,
	StageTechnicalDetails:          3,
	StageProjectSummary:            4,
	StageAwaitingConfirmation:      5,
	StageConfirmedReady:            6,
	StageScraperGenerated:          7,
}

func (s Stage) String() string {
	return string(s)
}

// Index returns the stage's position in the forward order, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	idx, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return idx
}

// IsValid reports whether s is a member of the closed stage set.
func (s Stage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Before reports whether s precedes other in the forward order.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

// ParseStage maps free-form stage text (typically from an LLM response) onto
// the closed enum. Anything outside the known set collapses to
// StageConversationDeepening so an arbitrary string can never become a
// project's status.
func ParseStage(raw string) Stage {
	s := Stage(raw)
	if s.IsValid() {
		return s
	}
	return StageConversationDeepening
}

// MaxStage returns the later of two stages; used to keep status monotonic.
func MaxStage(a, b Stage) Stage {
	if a.Index() >= b.Index() {
		return a
	}
	return b
}

// Understanding levels reported by the analyzer.
const (
	UnderstandingInitial      = "initial"
	UnderstandingGettingDeep  = "getting_deeper"
	UnderstandingClarifying   = "clarifying"
	UnderstandingTechnical    = "technical"
	UnderstandingComplete     = "complete"
	ConfidenceMedium          = "medium"
	DefaultResponseMessage    = "Got it. Tell me more about what data you want to collect."
	DefaultUnderstandingLevel = UnderstandingInitial
)

// AnalysisResult is the analyzer's per-turn verdict. Every field is always
// populated: the analyzer validates and defaults LLM output at the boundary
// so the controller never sees a partially filled result.
type AnalysisResult struct {
	Stage              Stage          `json:"stage"`
	ResponseMessage    string         `json:"response_message"`
	ProbingQuestions   []string       `json:"probing_questions"`
	DetectedURLs       []string       `json:"detected_urls"`
	UnderstandingLevel string         `json:"understanding_level"`
	InsightsGathered   []string       `json:"insights_gathered"`
	NextFocus          string         `json:"next_focus"`
	NeedsMoreInfo      bool           `json:"needs_more_info"`
	Confidence         string         `json:"confidence"`
	Summary            *FinalAnalysis `json:"summary,omitempty"`

	// FallbackUsed marks results produced by the deterministic heuristic
	// rather than the LLM. Recorded for observability only.
	FallbackUsed bool `json:"-"`
}

// FillDefaults back-fills every missing field with a fixed value so a
// parsed-but-incomplete LLM response still yields a complete result.
func (r *AnalysisResult) FillDefaults() {
	if !r.Stage.IsValid() {
		r.Stage = StageConversationDeepening
	}
	if r.ResponseMessage == "" {
		r.ResponseMessage = DefaultResponseMessage
	}
	if r.ProbingQuestions == nil {
		r.ProbingQuestions = []string{}
	}
	if r.DetectedURLs == nil {
		r.DetectedURLs = []string{}
	}
	if r.UnderstandingLevel == "" {
		r.UnderstandingLevel = DefaultUnderstandingLevel
	}
	if r.InsightsGathered == nil {
		r.InsightsGathered = []string{}
	}
	if r.Confidence == "" {
		r.Confidence = ConfidenceMedium
	}
}

// PageAnalysis is the structured description of what data one URL exposes.
// Immutable once written; produced at most once per URL per project.
type PageAnalysis struct {
	PageType        string   `json:"page_type"`
	MainContentType string   `json:"main_content_type"`
	PrimaryFields   []string `json:"primary_fields"`
	SecondaryFields []string `json:"secondary_fields"`
	Complexity      string   `json:"complexity"`
	Richness        string   `json:"richness"`
	Insights        []string `json:"insights"`
}

// ProjectSummary is the human-facing recap section of the final analysis.
type ProjectSummary struct {
	Name           string   `json:"name"`
	Objective      string   `json:"objective"`
	TargetWebsites []string `json:"target_websites"`
	UseCase        string   `json:"use_case"`
	Frequency      string   `json:"frequency"`
}

// SchemaField describes one field of the proposed extraction schema.
type SchemaField struct {
	FieldName   string `json:"field_name"`
	DataType    string `json:"data_type"`
	Description string `json:"description"`
	Optional    bool   `json:"optional,omitempty"`
}

// DataSchema splits the proposed fields into primary and secondary data.
type DataSchema struct {
	PrimaryData     []SchemaField `json:"primary_data"`
	SecondaryData   []SchemaField `json:"secondary_data"`
	OutputStructure string        `json:"output_structure"`
}

// TechnicalRequirements captures how the scraper should be built.
type TechnicalRequirements struct {
	ScrapingMethod        string   `json:"scraping_method"`
	ComplexityLevel       string   `json:"complexity_level"`
	SpecialConsiderations []string `json:"special_considerations"`
	EstimatedSetupTime    string   `json:"estimated_setup_time"`
}

// FinalAnalysis is the terminal structured specification produced at the
// summary stage. Stored verbatim on the project and used as the canonical
// input to automation prompt rendering.
type FinalAnalysis struct {
	ProjectSummary        ProjectSummary        `json:"project_summary"`
	DataSchema            DataSchema            `json:"data_schema"`
	TechnicalRequirements TechnicalRequirements `json:"technical_requirements"`
	NextSteps             []string              `json:"next_steps"`
	FinalQuestion         string                `json:"final_question"`
}

// HistoryEntry is one message of a project's conversation history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
