package home

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/google/uuid"
	"github.com/myformhq/myform/sys"
)

func init() {
	sys.RegisterComponentHandler(ComponentFormSubmit, handleFormSubmitButton)
	sys.RegisterComponentHandler(ComponentFormNext, handleFormNextButton)
	sys.RegisterModalHandler(ModalFormPage, handleFormPageModal)
	sys.RegisterDaemon(sys.LogForm, startBufferJanitor)
}

// ===========================
// Submission buffers
// ===========================

// submissionBuffer holds partial answers while a user walks through the
// modal pages of one form. The token invalidates stale continue buttons
// when the user restarts the flow, and the mutex serializes overlapping
// submits of the same page. lastActive feeds the janitor that drops
// buffers from abandoned flows.
type submissionBuffer struct {
	mu         sync.Mutex
	token      string
	answers    []string
	filled     []bool
	lastActive time.Time
}

var submissions sync.Map // guildID:formID:userID -> *submissionBuffer

const (
	bufferSweepInterval = 10 * time.Minute
	bufferTTL           = 30 * time.Minute
)

// sweepSubmissionBuffers removes buffers idle since before cutoff and
// reports how many were dropped.
func sweepSubmissionBuffers(cutoff time.Time) int {
	removed := 0
	submissions.Range(func(key, value any) bool {
		buf := value.(*submissionBuffer)
		buf.mu.Lock()
		stale := buf.lastActive.Before(cutoff)
		buf.mu.Unlock()
		if stale {
			submissions.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func startBufferJanitor(ctx context.Context) (bool, func(), func()) {
	daemonCtx, cancel := context.WithCancel(ctx)

	run := func() {
		ticker := time.NewTicker(bufferSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := sweepSubmissionBuffers(time.Now().Add(-bufferTTL)); removed > 0 {
					sys.LogForm("dropped %d abandoned submission buffer(s)", removed)
				}
			case <-daemonCtx.Done():
				return
			}
		}
	}

	return true, run, cancel
}

func bufferKey(guildID, formID, userID string) string {
	return guildID + ":" + formID + ":" + userID
}

func totalSteps(questionCount int) int {
	return (questionCount + questionsPerModal - 1) / questionsPerModal
}

// buildStepModal builds the modal for one page. Each input is tagged with
// the question's absolute index so pages merge correctly whatever their
// boundaries. Labels over the platform's 45-char limit are truncated for
// display only; the stored question text keeps its full length.
func buildStepModal(form *sys.Form, step int, token string) discord.ModalCreate {
	start := (step - 1) * questionsPerModal
	end := sys.Min(start+questionsPerModal, len(form.Questions))

	var components []discord.LayoutComponent
	for i := start; i < end; i++ {
		q := form.Questions[i]
		label := sys.Truncate(q.Text, modalLabelMaxLen)
		fieldID := fmt.Sprintf("%s%d", questionFieldPrefix, i)

		if q.Style == sys.QuestionStyleParagraph {
			components = append(components, discord.NewLabel(label, discord.NewParagraphTextInput(fieldID).WithRequired(true).WithMaxLength(answerFieldMaxLen)))
		} else {
			components = append(components, discord.NewLabel(label, discord.NewShortTextInput(fieldID).WithRequired(true).WithMaxLength(answerFieldMaxLen)))
		}
	}

	return discord.NewModalCreate(
		fmt.Sprintf("%s%s:%d:%s", ModalFormPage, form.ID, step, token),
		sys.Truncate(fmt.Sprintf("%s (%d/%d)", form.Title, step, totalSteps(len(form.Questions))), modalLabelMaxLen),
		components,
	)
}

// handleFormSubmitButton runs the gate and opens page one, replacing any
// earlier half-finished attempt by the same user.
func handleFormSubmitButton(event *events.ComponentInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	formID := strings.TrimPrefix(event.Data.CustomID(), ComponentFormSubmit)
	userID := event.User().ID.String()
	ctx := context.Background()

	form, err := sys.DataStore.GetForm(ctx, guildID.String(), formID)
	if err != nil {
		sys.LogForm("form lookup failed: %v", err)
		respondComponentEphemeral(event, MsgFormStoreError)
		return
	}

	block, err := EvaluateGate(ctx, form, userID)
	if err != nil {
		sys.LogForm("gate evaluation failed: %v", err)
		respondComponentEphemeral(event, MsgFormStoreError)
		return
	}
	if block != nil {
		respondComponentEphemeral(event, block.Message)
		return
	}

	buf := &submissionBuffer{
		token:      uuid.NewString(),
		answers:    make([]string, len(form.Questions)),
		filled:     make([]bool, len(form.Questions)),
		lastActive: time.Now(),
	}
	submissions.Store(bufferKey(form.GuildID, form.ID, userID), buf)

	if err := event.Modal(buildStepModal(form, 1, buf.token)); err != nil {
		sys.LogForm("failed to open submission modal: %v", err)
	}
}

// handleFormNextButton opens the next page when its continue button is
// pressed. Stale tokens from a restarted flow are refused explicitly.
func handleFormNextButton(event *events.ComponentInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	parts := strings.Split(strings.TrimPrefix(event.Data.CustomID(), ComponentFormNext), ":")
	if len(parts) != 3 {
		return
	}
	formID, step, token := parts[0], sys.Atoi(parts[1]), parts[2]
	userID := event.User().ID.String()
	ctx := context.Background()

	form, err := sys.DataStore.GetForm(ctx, guildID.String(), formID)
	if err != nil || form == nil {
		respondComponentEphemeral(event, MsgFormGone)
		return
	}

	v, ok := submissions.Load(bufferKey(form.GuildID, form.ID, userID))
	if !ok || v.(*submissionBuffer).token != token {
		respondComponentEphemeral(event, MsgFormSessionGone)
		return
	}

	if step < 1 || step > totalSteps(len(form.Questions)) {
		respondComponentEphemeral(event, MsgFormSessionGone)
		return
	}

	if err := event.Modal(buildStepModal(form, step, token)); err != nil {
		sys.LogForm("failed to open submission modal: %v", err)
	}
}

// handleFormPageModal stores one page of answers and either offers the next
// page or finalizes the submission.
func handleFormPageModal(event *events.ModalSubmitInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	parts := strings.Split(strings.TrimPrefix(event.Data.CustomID, ModalFormPage), ":")
	if len(parts) != 3 {
		return
	}
	formID, step, token := parts[0], sys.Atoi(parts[1]), parts[2]
	userID := event.User().ID.String()
	ctx := context.Background()

	form, err := sys.DataStore.GetForm(ctx, guildID.String(), formID)
	if err != nil || form == nil {
		respondModalEphemeral(event, MsgFormGone)
		return
	}

	key := bufferKey(form.GuildID, form.ID, userID)
	v, ok := submissions.Load(key)
	if !ok {
		respondModalEphemeral(event, MsgFormSessionGone)
		return
	}
	buf := v.(*submissionBuffer)

	buf.mu.Lock()
	if buf.token != token {
		buf.mu.Unlock()
		respondModalEphemeral(event, MsgFormSessionGone)
		return
	}

	buf.lastActive = time.Now()
	start := (step - 1) * questionsPerModal
	end := sys.Min(start+questionsPerModal, len(form.Questions))
	for i := start; i < end; i++ {
		fieldID := fmt.Sprintf("%s%d", questionFieldPrefix, i)
		if answer := event.Data.Text(fieldID); answer != "" && i < len(buf.answers) {
			buf.answers[i] = answer
			buf.filled[i] = true
		}
	}

	steps := totalSteps(len(form.Questions))
	if step < steps {
		buf.mu.Unlock()
		err := event.CreateMessage(sys.EphemeralContainer(
			discord.NewTextDisplay(fmt.Sprintf("📄 Page %d/%d enregistrée.", step, steps)),
			discord.NewActionRow(
				discord.NewButton(discord.ButtonStylePrimary,
					fmt.Sprintf("Continuer (%d/%d)", step+1, steps),
					fmt.Sprintf("%s%s:%d:%s", ComponentFormNext, form.ID, step+1, token), "", 0),
			),
		))
		if err != nil {
			sys.LogForm("failed to send continue prompt: %v", err)
		}
		return
	}

	// Final page: assemble answers, skipping holes from pages never
	// submitted, and drop the buffer whatever happens next.
	var answers []answeredQuestion
	for i, q := range form.Questions {
		if buf.filled[i] {
			answers = append(answers, answeredQuestion{Question: q.Text, Answer: buf.answers[i]})
		}
	}
	buf.mu.Unlock()
	submissions.Delete(key)

	if err := publishResponse(ctx, event.Client(), form, event.User(), answers); err != nil {
		sys.LogForm("response publish failed for form %s: %v", form.ID, err)
		respondModalEphemeral(event, MsgFormStoreError)
		return
	}

	respondModalEphemeral(event, MsgFormSubmitted)
}
