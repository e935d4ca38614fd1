// Package transport implements the binary WebSocket wire protocol spoken to
// the ASR service: a 4-byte header, a big-endian payload length, and a
// gzip-compressed JSON or PCM payload.
package transport

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Message type nibble values (header byte 1, high nibble).
const (
	msgFullClientRequest byte = 0x1
	msgAudioOnly         byte = 0x2
	msgFullServerResponse byte = 0x9
	msgError             byte = 0xF
)

// Serialization/compression nibble values (header byte 2).
const (
	serialNone byte = 0x0
	serialJSON byte = 0x1

	compressNone byte = 0x0
	compressGzip byte = 0x1
)

const (
	protocolVersion byte = 0x1
	headerSizeWords byte = 0x1 // header is 1*4 = 4 bytes

	// flagIsLast marks an AudioOnly frame as the session's final frame.
	flagIsLast byte = 0x2
	// flagHasSequence marks a FullServerResponse frame as carrying a
	// 4-byte sequence number before the payload-length field.
	flagHasSequence byte = 0x1
)

// frameHeader packs the 4-byte protocol header.
func frameHeader(msgType, flags, serialization, compression byte) [4]byte {
	return [4]byte{
		(protocolVersion << 4) | headerSizeWords,
		(msgType << 4) | flags,
		(serialization << 4) | compression,
		0,
	}
}

func gzipBytes(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(payload []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// buildFullClientRequest frames the session handshake: a gzip-compressed
// JSON declaration of audio format and recognizer options.
func buildFullClientRequest(jsonPayload []byte) ([]byte, error) {
	compressed, err := gzipBytes(jsonPayload)
	if err != nil {
		return nil, fmt.Errorf("gzip handshake payload: %w", err)
	}
	header := frameHeader(msgFullClientRequest, 0, serialJSON, compressGzip)
	return assembleFrame(header, compressed), nil
}

// buildAudioFrame frames a gzip-compressed PCM AudioOnly message. isLast sets
// the end-of-stream flag bit.
func buildAudioFrame(pcm []byte, isLast bool) ([]byte, error) {
	compressed, err := gzipBytes(pcm)
	if err != nil {
		return nil, fmt.Errorf("gzip audio payload: %w", err)
	}
	var flags byte
	if isLast {
		flags = flagIsLast
	}
	header := frameHeader(msgAudioOnly, flags, serialNone, compressGzip)
	return assembleFrame(header, compressed), nil
}

func assembleFrame(header [4]byte, payload []byte) []byte {
	out := make([]byte, 0, 8+len(payload))
	out = append(out, header[:]...)
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	out = append(out, length[:]...)
	out = append(out, payload...)
	return out
}

// ServerMessage is the decoded result of one inbound frame.
type ServerMessage struct {
	// IsError is true when the frame was an Error message; Code/Message are
	// then populated and Text/IsFinal are zero.
	IsError bool
	Code    uint32
	Message string

	Text    string
	IsFinal bool
}

// parseServerFrame decodes one inbound frame per the header byte 1 message
// type: Error frames carry a 4-byte code + 4-byte length + UTF-8 message;
// FullServerResponse frames carry an optional 4-byte sequence (gated by flags
// bit 0), a 4-byte payload length, and a JSON payload (gunzipped if the
// compression nibble says so).
func parseServerFrame(raw []byte) (ServerMessage, error) {
	if len(raw) < 4 {
		return ServerMessage{}, fmt.Errorf("frame too short: %d bytes", len(raw))
	}
	msgType := raw[1] >> 4
	flags := raw[1] & 0x0F
	compression := raw[2] & 0x0F
	body := raw[4:]

	if msgType == msgError {
		if len(body) < 8 {
			return ServerMessage{}, fmt.Errorf("error frame too short: %d bytes", len(body))
		}
		code := binary.BigEndian.Uint32(body[0:4])
		length := binary.BigEndian.Uint32(body[4:8])
		msgBytes := body[8:]
		if uint32(len(msgBytes)) < length {
			return ServerMessage{}, fmt.Errorf("error frame truncated: want %d bytes, have %d", length, len(msgBytes))
		}
		return ServerMessage{IsError: true, Code: code, Message: string(msgBytes[:length])}, nil
	}

	if flags&flagHasSequence != 0 {
		if len(body) < 4 {
			return ServerMessage{}, fmt.Errorf("response frame missing sequence")
		}
		body = body[4:]
	}
	if len(body) < 4 {
		return ServerMessage{}, fmt.Errorf("response frame missing length")
	}
	length := binary.BigEndian.Uint32(body[0:4])
	body = body[4:]
	if uint32(len(body)) < length {
		return ServerMessage{}, fmt.Errorf("response frame truncated: want %d bytes, have %d", length, len(body))
	}
	payload := body[:length]

	if compression == compressGzip {
		decoded, err := gunzipBytes(payload)
		if err != nil {
			return ServerMessage{}, fmt.Errorf("gunzip response payload: %w", err)
		}
		payload = decoded
	}

	text, isFinal, err := decodeResult(payload)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Text: text, IsFinal: isFinal}, nil
}
