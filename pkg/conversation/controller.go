// Package conversation implements the per-user dialogue state machine. Each
// inbound message becomes one turn: the requirement analyzer produces a
// verdict, newly seen URLs get analyzed, the project's stage advances
// monotonically, and a reply goes back through the chat transport. Once
// enough exchanges and page data have accumulated, the controller forces the
// summary stage so the dialogue cannot loop indefinitely on an LLM that
// keeps asking questions.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"metagent/pkg/analyzer"
	"metagent/pkg/automation"
	"metagent/pkg/chat"
	"metagent/pkg/config"
	"metagent/pkg/generation"
	"metagent/pkg/logx"
	"metagent/pkg/metrics"
	"metagent/pkg/pageintel"
	"metagent/pkg/persistence"
	"metagent/pkg/project"
	"metagent/pkg/proto"
	"metagent/pkg/utils"
)

// probingHistoryLimit bounds when a probing question is still appended to
// the reply: only while the history is shorter than this, i.e. during the
// first two exchanges. Later stages must not re-ask basic questions.
const probingHistoryLimit = 6

// Deps carries the controller's collaborators. Recorder, Records and Stats
// may be nil; they degrade to no-ops.
type Deps struct {
	Store     *project.Store
	Analyzer  *analyzer.RequirementAnalyzer
	Pages     *pageintel.Cache
	Generator *generation.Orchestrator
	Transport chat.Transport
	Config    *config.AnalyzerConfig
	Recorder  metrics.Recorder
	Records   *persistence.Store
	Stats     *metrics.QueryService
}

// Controller is the conversation state machine. One instance serves all
// users; per-user exclusion comes from the project store.
type Controller struct {
	store     *project.Store
	analyzer  *analyzer.RequirementAnalyzer
	pages     *pageintel.Cache
	generator *generation.Orchestrator
	transport chat.Transport
	cfg       *config.AnalyzerConfig
	recorder  metrics.Recorder
	records   *persistence.Store
	stats     *metrics.QueryService
	logger    *logx.Logger
}

// NewController wires a controller from its dependencies.
func NewController(deps Deps) *Controller {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Controller{
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		pages:     deps.Pages,
		generator: deps.Generator,
		transport: deps.Transport,
		cfg:       deps.Config,
		recorder:  recorder,
		records:   deps.Records,
		stats:     deps.Stats,
		logger:    logx.NewLogger("conversation"),
	}
}

// HandleMessage processes one inbound user message as a full turn and sends
// the reply. Turn failures never reach the transport as errors; the only
// error returned is a transport send failure.
func (c *Controller) HandleMessage(ctx context.Context, userID int64, message string) error {
	start := time.Now()

	var (
		reply        string
		stageBefore  proto.Stage
		stageAfter   proto.Stage
		fallbackUsed bool
		urlsAdded    int
	)

	err := c.store.WithProject(userID, func(p *project.Project) error {
		stageBefore = p.Status
		p.AppendUser(message)

		if c.shouldForceSummary(p) {
			reply = c.runSummaryTurn(ctx, p)
		} else {
			reply, fallbackUsed, urlsAdded = c.runAnalysisTurn(ctx, message, p)
		}

		stageAfter = p.Status
		return nil
	})
	if err != nil {
		return err
	}

	c.recordTurn(ctx, userID, stageBefore, stageAfter, fallbackUsed, urlsAdded, time.Since(start))

	if _, err := c.transport.SendText(ctx, userID, reply); err != nil {
		return logx.Wrap(err, "failed to send reply")
	}
	return nil
}

// shouldForceSummary applies the forced-summary override: once the exchange
// budget is spent and both URLs and page analyses exist, the summary is
// produced regardless of what the analyzer would propose.
func (c *Controller) shouldForceSummary(p *project.Project) bool {
	return p.ExchangeCount() >= c.cfg.ExchangeBudget &&
		len(p.TargetURLs) > 0 &&
		p.HasPageAnalyses()
}

// runSummaryTurn generates and stores the final analysis, advances to the
// summary stage, and returns the rendered summary as the reply.
func (c *Controller) runSummaryTurn(ctx context.Context, p *project.Project) string {
	c.logger.Info("user %d: forcing summary stage after %d exchanges", p.UserID, p.ExchangeCount())

	fa := c.analyzer.GenerateSummary(ctx, p)
	p.FinalAnalysis = fa
	if p.ProjectName == "" {
		p.ProjectName = fa.ProjectSummary.Name
	}
	p.AdvanceTo(proto.StageProjectSummary)

	reply := analyzer.RenderSummaryMessage(fa)
	p.AppendAssistant(reply)
	return reply
}

// runAnalysisTurn is the normal path: analyze the message, take in new URLs,
// advance the stage, and assemble the reply.
func (c *Controller) runAnalysisTurn(ctx context.Context, message string, p *project.Project) (reply string, fallbackUsed bool, urlsAdded int) {
	result := c.analyzer.Analyze(ctx, message, p)

	added := p.AddURLs(result.DetectedURLs)
	summaries, warnings := c.analyzeNewURLs(ctx, added, p)

	p.AdvanceTo(result.Stage)
	p.AppendAssistant(result.ResponseMessage)

	var b strings.Builder
	b.WriteString(result.ResponseMessage)
	if len(result.ProbingQuestions) > 0 && len(p.ContextHistory) < probingHistoryLimit {
		b.WriteString("\n\n")
		b.WriteString(result.ProbingQuestions[0])
	}
	for _, s := range summaries {
		b.WriteString("\n\n")
		b.WriteString(s)
	}
	for _, w := range warnings {
		b.WriteString("\n\n")
		b.WriteString(w)
	}
	if deferred := len(added) - c.cfg.MaxURLAnalysesPerTurn; deferred == 1 {
		b.WriteString("\n\nI noted one more link and will look at it as we go.")
	} else if deferred > 1 {
		fmt.Fprintf(&b, "\n\nI noted %d more links and will look at them as we go.", deferred)
	}

	return b.String(), result.FallbackUsed, len(added)
}

// analyzeNewURLs runs page analysis for newly added URLs, bounded to the
// first MaxURLAnalysesPerTurn to cap latency. Failures become soft warnings
// and never abort the turn or stop the remaining URLs.
func (c *Controller) analyzeNewURLs(ctx context.Context, added []string, p *project.Project) (summaries, warnings []string) {
	for i, url := range added {
		if i >= c.cfg.MaxURLAnalysesPerTurn {
			break
		}
		analysis, err := c.pages.GetOrAnalyze(ctx, url, p)
		if err != nil {
			c.recorder.ObservePageAnalysis(metrics.PageAnalysisFailed)
			warnings = append(warnings, fmt.Sprintf(
				"Note: I couldn't look at %s just yet, but I've kept it on the list.", url))
			continue
		}
		c.recorder.ObservePageAnalysis(metrics.PageAnalysisOK)
		summaries = append(summaries, pageintel.HumanSummary(url, analysis))
	}
	return summaries, warnings
}

// Confirm handles the user's confirmation callback on the final summary.
// It renders and stores the automation prompt exactly once, runs generation,
// and reports the outcome. On any generation failure the stored prompt is
// offered back so the specification is never lost.
func (c *Controller) Confirm(ctx context.Context, userID int64, queryID string) error {
	if queryID != "" {
		if err := c.transport.AnswerCallback(ctx, queryID); err != nil {
			c.logger.Debug("callback ack failed: %v", err)
		}
	}

	var prompt string
	confirmed := false
	err := c.store.WithProject(userID, func(p *project.Project) error {
		if p.FinalAnalysis == nil {
			return nil
		}
		p.AdvanceTo(proto.StageAwaitingConfirmation)
		p.AdvanceTo(proto.StageConfirmedReady)
		if p.AutomationPrompt == "" {
			p.AutomationPrompt = generation.RenderPrompt(p.FinalAnalysis)
		}
		prompt = p.AutomationPrompt
		confirmed = true
		return nil
	})
	if err != nil {
		return err
	}

	if !confirmed {
		_, sendErr := c.transport.SendText(ctx, userID,
			"There's no summary to confirm yet. Tell me more about your project first.")
		return sendErr
	}

	// Generation can take minutes; run it outside the project lock so the
	// user's other messages are not blocked behind it.
	result := c.generator.Generate(ctx, userID, prompt)
	c.recordSession(ctx, userID, result)

	if result.Outcome != generation.OutcomeGenerated {
		text := fmt.Sprintf(
			"Generation didn't produce a scraper (%s). Your specification is safe; you can run it manually with any coding tool:\n\n%s",
			result.Outcome, prompt)
		_, sendErr := c.transport.SendText(ctx, userID, text)
		return sendErr
	}

	storeErr := c.store.WithProject(userID, func(p *project.Project) error {
		p.GeneratedArtifact = result.Artifact
		p.AdvanceTo(proto.StageScraperGenerated)
		return nil
	})
	if storeErr != nil {
		return storeErr
	}

	_, sendErr := c.transport.SendText(ctx, userID, successMessage(result))
	return sendErr
}

func successMessage(result generation.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your scraper is ready: %s", result.Artifact)

	switch result.Exec.Status {
	case automation.ExecRan:
		b.WriteString("\nI ran it and it completed successfully.")
		if out := strings.TrimSpace(result.Exec.Output); out != "" {
			fmt.Fprintf(&b, " First output:\n%s", truncate(out, 500))
		}
	case automation.ExecInteractive:
		b.WriteString("\nIt's running now; it looks like an interactive program.")
	case automation.ExecFailed:
		b.WriteString("\nIt was generated but hit an error on the first run. You may need to install its dependencies.")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// recordTurn updates metrics and the append-only turn record. Failures are
// logged, never surfaced; observability must not break a turn.
func (c *Controller) recordTurn(ctx context.Context, userID int64, before, after proto.Stage, fallbackUsed bool, urlsAdded int, elapsed time.Duration) {
	c.recorder.ObserveTurn(after.String(), fallbackUsed, elapsed)

	if c.records == nil {
		return
	}
	err := c.records.RecordTurn(ctx, &persistence.TurnRecord{
		ID:           utils.NewTurnID(),
		UserID:       userID,
		StageBefore:  before.String(),
		StageAfter:   after.String(),
		FallbackUsed: fallbackUsed,
		URLsAdded:    urlsAdded,
	})
	if err != nil {
		c.logger.Warn("turn record failed: %v", err)
	}
}

func (c *Controller) recordSession(ctx context.Context, userID int64, result generation.Result) {
	c.recorder.ObserveGeneration(string(result.Outcome), result.Elapsed)

	if c.records == nil {
		return
	}
	err := c.records.RecordSession(ctx, &persistence.SessionRecord{
		ID:       utils.NewSessionID(),
		UserID:   userID,
		Outcome:  string(result.Outcome),
		Artifact: result.Artifact,
		Duration: result.Elapsed,
	})
	if err != nil {
		c.logger.Warn("session record failed: %v", err)
	}
}
