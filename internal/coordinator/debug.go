package coordinator

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// dumpAudioIfEnabled writes the session's raw captured PCM to a timestamped
// WAV file under the state directory when debug.audio_dump is configured.
func (c *Coordinator) dumpAudioIfEnabled(stream captureStream) {
	if !c.cfg.Debug.EnableAudioDump {
		return
	}
	raw := stream.RawPCM()
	if len(raw) == 0 {
		return
	}

	file, err := createDebugFile("audio", "wav")
	if err != nil {
		c.logDebugFailure("create debug audio dump", err)
		return
	}
	defer file.Close()

	if err := writePCM16WAV(file, raw, 16000, 1); err != nil {
		c.logDebugFailure("write debug audio dump", err)
	}
}

// dumpTransportResult appends one decoded ASR result to the session's
// transport debug log when debug.transport_dump is configured.
func (c *Coordinator) dumpTransportResult(text string, isFinal bool) {
	if !c.cfg.Debug.EnableTransportDump {
		return
	}

	c.debugMu.Lock()
	defer c.debugMu.Unlock()

	if c.debugTransportFile == nil {
		file, err := createDebugFile("transport", "jsonl")
		if err != nil {
			c.logDebugFailure("create debug transport dump", err)
			return
		}
		c.debugTransportFile = file
	}

	line := fmt.Sprintf("{\"text\":%q,\"is_final\":%t,\"at\":%q}\n", text, isFinal, time.Now().Format(time.RFC3339Nano))
	if _, err := c.debugTransportFile.WriteString(line); err != nil {
		c.logDebugFailure("write debug transport dump", err)
	}
}

func (c *Coordinator) closeDebugArtifacts() {
	c.debugMu.Lock()
	defer c.debugMu.Unlock()
	if c.debugTransportFile != nil {
		_ = c.debugTransportFile.Close()
		c.debugTransportFile = nil
	}
}

func (c *Coordinator) logDebugFailure(action string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("debug artifact failure", "action", action, "error", err.Error())
}

// createDebugFile creates a timestamped debug artifact under
// $XDG_STATE_HOME/dictate/debug (or ~/.local/state/dictate/debug).
func createDebugFile(prefix, extension string) (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "dictate", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}

// writePCM16WAV writes raw little-endian PCM bytes with a minimal WAV header.
func writePCM16WAV(file *os.File, pcm []byte, sampleRate, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	chunkSize := uint32(36 + len(pcm))
	subChunk2Size := uint32(len(pcm))

	header := make([]byte, 44)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], chunkSize)
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], subChunk2Size)

	if _, err := file.Write(header); err != nil {
		return err
	}
	_, err := file.Write(pcm)
	return err
}
