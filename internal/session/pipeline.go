package session

import (
	"context"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/fault"
	"github.com/rbright/medvoice/internal/fsm"
)

// UploadFile validates an audio file and runs it through transcription and
// note generation. Validation failures leave the controller Idle.
func (c *Controller) UploadFile(ctx context.Context, path string) (View, error) {
	if err := c.claim(fsm.EventUpload); err != nil {
		return c.View(), err
	}

	payload, err := c.loadFile(path)
	if err == nil && payload.Len() == 0 {
		err = audio.ErrEmptyPayload
	}
	if err != nil {
		classified := fault.Classify(err)
		return c.fail(SourceFile, classified), classified
	}

	if _, err := c.settle(fsm.EventUpload, func(v *View) {
		c.resetView(v, SourceFile)
		v.Payload = &payload
		v.Status = StatusFileUploaded
	}); err != nil {
		return c.View(), err
	}
	return c.runPipeline(ctx, payload)
}

// runPipeline transcribes payload and, given usable speech, generates the
// note. It always leaves the controller in Done or Error.
func (c *Controller) runPipeline(ctx context.Context, payload audio.Payload) (View, error) {
	started := c.now()
	text, err := c.transcribe.Transcribe(ctx, payload)
	transcribeLatency := c.now().Sub(started)

	if err != nil {
		classified := fault.ClassifyRemote(err)
		snapshot, _ := c.apply(fsm.EventFail, func(v *View) {
			v.LastError = classified
			v.Status = classified.Message
			v.TranscribeLatency = transcribeLatency
			v.ChunkCount = 0
			v.FinishedAt = c.now()
		})
		return snapshot, classified
	}

	if fault.IsNoSpeech(text) {
		classified := fault.New(fault.NoSpeechDetected, nil)
		snapshot, _ := c.apply(fsm.EventFail, func(v *View) {
			v.Transcript = &text
			v.LastError = classified
			v.Status = classified.Message
			v.TranscribeLatency = transcribeLatency
			v.ChunkCount = 0
			v.FinishedAt = c.now()
		})
		return snapshot, classified
	}

	if _, err := c.apply(fsm.EventTranscribed, func(v *View) {
		v.Transcript = &text
		v.Status = StatusTranscribed
		v.TranscribeLatency = transcribeLatency
	}); err != nil {
		return c.View(), err
	}

	noteStarted := c.now()
	soap := c.notes.Generate(ctx, text)
	noteLatency := c.now().Sub(noteStarted)

	snapshot, err := c.apply(fsm.EventNoted, func(v *View) {
		v.Note = &soap
		v.Status = StatusNoteReady
		v.NoteLatency = noteLatency
		v.ChunkCount = 0
		v.FinishedAt = c.now()
	})
	return snapshot, err
}
