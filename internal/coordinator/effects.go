package coordinator

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/wanpengxie/dictate/internal/audio"
	"github.com/wanpengxie/dictate/internal/config"
	"github.com/wanpengxie/dictate/internal/fsm"
	"github.com/wanpengxie/dictate/internal/transport"
)

const bringUpTimeout = 8 * time.Second

type bringUpCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newBringUpContext() bringUpCtx {
	ctx, cancel := context.WithTimeout(context.Background(), bringUpTimeout)
	return bringUpCtx{ctx: ctx, cancel: cancel}
}

// executeEffect dispatches one declarative effect to real I/O. It never
// blocks the event loop on network or device calls: every adapter
// interaction that can stall runs on its own goroutine, which reports back
// by posting a new event.
func (c *Coordinator) executeEffect(ctx context.Context, eff fsm.Effect) {
	token := c.currentSessionToken()

	switch eff.Kind {
	case fsm.EffectNewSession:
		c.mu.Lock()
		c.segments = nil
		c.started = time.Now()
		c.summary = SessionSummary{StartedAt: c.started}
		c.mu.Unlock()

	case fsm.EffectUpdateUI:
		c.updateUI(ctx, eff.Message)

	case fsm.EffectShowError:
		c.indicator.ShowError(ctx, eff.Message)
		if c.logger != nil {
			c.logger.Error("coordinator fault", "message", eff.Message, "session_token", token)
		}
		c.mu.Lock()
		c.summary.Err = errors.New(eff.Message)
		c.summary.FinishedAt = time.Now()
		c.summary.State = c.fsmCtx.State
		c.summary.FocusedMonitor = c.indicator.FocusedMonitor()
		c.mu.Unlock()

	case fsm.EffectArmTimer:
		c.armTimer(eff.Timer, eff.Duration, token)

	case fsm.EffectCancelTimer:
		c.cancelTimer(eff.Timer)

	case fsm.EffectCheckPermissions:
		go c.doCheckPermissions(token)

	case fsm.EffectInitAudio:
		go c.doInitAudio(token)

	case fsm.EffectConnectTransport:
		go c.doConnectTransport(token)

	case fsm.EffectStartCapture:
		c.doStartCapture(token)

	case fsm.EffectStopCapture:
		c.doStopCapture()

	case fsm.EffectFlushQueue:
		go c.doFlushQueue(token)

	case fsm.EffectCloseTransport:
		c.doCloseTransport()

	case fsm.EffectReleaseResources:
		c.doReleaseResources()

	case fsm.EffectCommitText:
		c.doCommitText(ctx, token)
	}
}

// updateUI routes the fsm's short status keywords to indicator calls.
func (c *Coordinator) updateUI(ctx context.Context, message string) {
	switch message {
	case "initializing", "speak":
		c.indicator.ShowRecording(ctx)
	case "processing":
		c.indicator.ShowTranscribing(ctx)
	case "device changed":
		c.indicator.ShowRecording(ctx)
	case "cancelled":
		c.indicator.CueCancel(ctx)
		c.indicator.Hide(ctx)
	case "hide":
		c.indicator.Hide(ctx)
	}
}

func (c *Coordinator) doCheckPermissions(token string) {
	bc := newBringUpContext()
	defer bc.cancel()

	if err := c.probe.CheckMicAccess(bc.ctx, c.cfg.Audio); err != nil {
		c.post(fsm.Event{Kind: fsm.EventMicPermissionDenied, SessionToken: token, Detail: err.Error()})
		return
	}

	if err := c.probe.CheckAccessibility(bc.ctx); err != nil {
		// Accessibility only gates synthetic paste, never recording itself.
		if c.logger != nil {
			c.logger.Warn("accessibility check failed; paste will be unavailable", "error", err.Error())
		}
	}

	c.post(fsm.Event{Kind: fsm.EventMicPermissionOk, SessionToken: token})
}

func (c *Coordinator) doInitAudio(token string) {
	bc := newBringUpContext()
	defer bc.cancel()

	selection, err := c.selectDevice(bc.ctx, c.cfg.Audio.Input, c.cfg.Audio.FallbackPriority)
	if err != nil {
		c.post(fsm.Event{Kind: fsm.EventAudioInitFailed, SessionToken: token, Detail: err.Error()})
		return
	}
	if selection.Warning != "" && c.logger != nil {
		c.logger.Warn(selection.Warning)
	}

	stream, err := c.startCapture(bc.ctx, selection.Device)
	if err != nil {
		c.post(fsm.Event{Kind: fsm.EventAudioInitFailed, SessionToken: token, Detail: err.Error()})
		return
	}

	c.mu.Lock()
	if c.currentSessionTokenLocked() != token {
		c.mu.Unlock()
		_ = stream.Stop()
		return
	}
	c.capture = stream
	c.summary.AudioDevice = selection.Device.ID
	c.mu.Unlock()

	c.post(fsm.Event{Kind: fsm.EventAudioReady, SessionToken: token})
}

func (c *Coordinator) doConnectTransport(token string) {
	bc := newBringUpContext()
	defer bc.cancel()

	if err := c.probe.CheckReachable(bc.ctx, c.cfg.ASREndpoint, nil); err != nil {
		c.post(fsm.Event{Kind: fsm.EventNetworkUnavailable, SessionToken: token, Detail: err.Error()})
		return
	}

	client := c.dialTransport(c.cfg, token)
	speechPhrases, _, _ := config.BuildSpeechPhrases(c.cfg)
	hotwords := make([]string, 0, len(speechPhrases))
	for _, p := range speechPhrases {
		hotwords = append(hotwords, p.Phrase)
	}

	opts := transport.HandshakeOptions{
		UID:               token,
		ModelName:         c.cfg.ASR.Model,
		SampleRate:        16000,
		BitsPerSample:     16,
		Channels:          1,
		EnableITN:         true,
		EnablePunctuation: c.cfg.ASR.AutomaticPunctuation,
		ShowUtterances:    true,
		Hotwords:          hotwords,
	}
	if err := client.Connect(bc.ctx, opts); err != nil {
		c.post(fsm.Event{Kind: fsm.EventTransportError, SessionToken: token, Detail: err.Error()})
		return
	}

	c.mu.Lock()
	if c.currentSessionTokenLocked() != token {
		c.mu.Unlock()
		_ = client.Close()
		return
	}
	c.client = client
	c.mu.Unlock()

	c.post(fsm.Event{Kind: fsm.EventTransportConnected, SessionToken: token})
}

const (
	frameDuration    = 100 * time.Millisecond
	deviceGoneStreak = 5
)

// doStartCapture wires the already-opened capture stream into a send queue
// bound to the transport connection opened by EffectConnectTransport, and
// starts the background goroutines that keep both flowing.
func (c *Coordinator) doStartCapture(token string) {
	c.mu.Lock()
	stream := c.capture
	client := c.client
	c.mu.Unlock()
	if stream == nil || client == nil {
		return
	}

	queueMaxDuration := time.Duration(c.cfg.Coordinator.QueueCapacityFrames) * frameDuration
	queue := audio.NewQueue(queueMaxDuration, frameDuration)
	sender := audio.NewSender(queue, token, client.Send)

	c.mu.Lock()
	c.queue = queue
	c.sender = sender
	c.mu.Unlock()

	c.armSilenceCheck(token)

	go c.pumpCapture(stream, queue, token)
	go c.pumpResults(client, token)
	go c.watchSenderErrors(sender, token)
}

// pumpCapture forwards capture chunks into the send queue and tracks silence
// via a coarse amplitude threshold, flagging five consecutive stalls
// (zero-length reads) as a vanished device.
func (c *Coordinator) pumpCapture(stream captureStream, queue *audio.Queue, token string) {
	emptyStreak := 0
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			emptyStreak++
			if emptyStreak >= deviceGoneStreak {
				c.post(fsm.Event{Kind: fsm.EventAudioDeviceGone, SessionToken: token, Detail: "capture produced no data"})
				return
			}
			continue
		}
		emptyStreak = 0

		now := time.Now()
		queue.Put(token, chunk, now)
		c.noteAudioLevel(frameIsLoud(chunk, c.cfg.Coordinator.SilenceThreshold), now)
	}
}

// frameIsLoud reports whether a 16-bit PCM frame's RMS amplitude exceeds
// threshold.
func frameIsLoud(pcm []byte, threshold float64) bool {
	n := len(pcm) / 2
	if n == 0 {
		return false
	}
	var sumSquares float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		sumSquares += sample * sample
	}
	return math.Sqrt(sumSquares/float64(n)) > threshold
}

// pumpResults accumulates final ASR segments and surfaces partial results as
// indicator updates, independent of the Stopping-state resource teardown
// order (finals must already be in hand before EffectCommitText runs).
func (c *Coordinator) pumpResults(client transportClient, token string) {
	for {
		select {
		case res, ok := <-client.Results():
			if !ok {
				return
			}
			c.dumpTransportResult(res.Text, res.IsFinal)
			if res.IsFinal {
				if strings.TrimSpace(res.Text) == "" {
					continue
				}
				c.mu.Lock()
				c.segments = append(c.segments, res.Text)
				c.mu.Unlock()
				if c.State() == fsm.StateStopping {
					c.post(fsm.Event{Kind: fsm.EventQueueFlushed, SessionToken: token})
				}
			}
		case err, ok := <-client.Errors():
			if !ok {
				return
			}
			c.post(fsm.Event{Kind: fsm.EventTransportError, SessionToken: token, Detail: err.Error()})
			return
		case <-c.closeCh:
			return
		}
	}
}

func (c *Coordinator) watchSenderErrors(sender *audio.Sender, token string) {
	select {
	case te, ok := <-sender.Errors():
		if !ok {
			return
		}
		c.post(fsm.Event{Kind: fsm.EventTransportError, SessionToken: token, Detail: te.Error()})
	case <-c.closeCh:
	}
}

func (c *Coordinator) doStopCapture() {
	c.mu.Lock()
	stream := c.capture
	c.mu.Unlock()
	if stream == nil {
		return
	}
	c.cancelTimer(fsm.TimerSilenceCheck)
	c.dumpAudioIfEnabled(stream)
	_ = stream.Stop()
}

// doFlushQueue drains any remaining queued audio with the isLast marker set,
// waits briefly for the ASR service's trailing final result, and then posts
// QueueFlushed so Stopping can complete even if FlushTimeout fires first.
func (c *Coordinator) doFlushQueue(token string) {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender != nil {
		sender.Stop(true)
	}

	flushWindow := time.Duration(c.cfg.Coordinator.FlushTimeoutSeconds * float64(time.Second))
	time.Sleep(flushWindow / 2)
	c.post(fsm.Event{Kind: fsm.EventQueueFlushed, SessionToken: token})
}

func (c *Coordinator) doCloseTransport() {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if client != nil {
		_ = client.Close()
	}
}

func (c *Coordinator) doReleaseResources() {
	c.mu.Lock()
	stream := c.capture
	queue := c.queue
	sender := c.sender
	c.capture = nil
	c.queue = nil
	c.sender = nil
	if stream != nil {
		c.summary.BytesCaptured = stream.BytesCaptured()
	}
	c.mu.Unlock()

	if sender != nil {
		sender.Stop(false)
	}
	if queue != nil {
		queue.Close()
		if c.recorder != nil {
			c.recorder.RecordQueueDrop(queue.Stats().TotalDropped)
		}
	}
	if stream != nil {
		_ = stream.Stop()
	}

	c.cancelTimer(fsm.TimerSilenceCheck)
	c.closeDebugArtifacts()

	if c.State() == fsm.StateIdle {
		c.armIdleSweep()
	}
}

func (c *Coordinator) doCommitText(ctx context.Context, token string) {
	text := c.assembleTranscript()

	c.mu.Lock()
	startedAt := c.started
	cancelled := c.summary.Cancelled
	c.mu.Unlock()

	finish := func(err error) {
		c.mu.Lock()
		c.summary.Transcript = text
		c.summary.FinishedAt = time.Now()
		c.summary.State = c.fsmCtx.State
		c.summary.FocusedMonitor = c.indicator.FocusedMonitor()
		c.summary.Err = err
		c.mu.Unlock()
	}

	if strings.TrimSpace(text) == "" {
		finish(nil)
		return
	}
	if cancelled {
		finish(nil)
		return
	}

	commitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.commit.Commit(commitCtx, text); err != nil {
		if c.logger != nil {
			c.logger.Error("transcript commit failed", "error", err.Error(), "session_token", token)
		}
		finish(err)
		return
	}

	c.indicator.CueComplete(ctx)
	finish(nil)
	if c.recorder != nil && !startedAt.IsZero() {
		c.recorder.RecordSessionDuration(time.Since(startedAt))
	}
}
