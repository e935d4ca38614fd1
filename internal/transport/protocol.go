package transport

import "encoding/json"

// HandshakeOptions configures the FullClientRequest sent immediately after
// connect, before any audio is streamed.
type HandshakeOptions struct {
	UID             string
	ModelName       string
	SampleRate      int
	BitsPerSample   int
	Channels        int
	EnableITN       bool
	EnablePunctuation bool
	EnableDDC       bool
	ShowUtterances  bool
	Hotwords        []string
}

type handshakePayload struct {
	User    handshakeUser    `json:"user"`
	Audio   handshakeAudio   `json:"audio"`
	Request handshakeRequest `json:"request"`
}

type handshakeUser struct {
	UID string `json:"uid"`
}

type handshakeAudio struct {
	Format  string `json:"format"`
	Rate    int    `json:"rate"`
	Bits    int    `json:"bits"`
	Channel int    `json:"channel"`
}

type handshakeRequest struct {
	ModelName      string   `json:"model_name"`
	EnableITN      bool     `json:"enable_itn"`
	EnablePunc     bool     `json:"enable_punc"`
	EnableDDC      bool     `json:"enable_ddc"`
	ShowUtterances bool     `json:"show_utterances"`
	ResultType     string   `json:"result_type"`
	Hotwords       []string `json:"hotwords,omitempty"`
}

func buildHandshakePayload(opts HandshakeOptions) ([]byte, error) {
	payload := handshakePayload{
		User: handshakeUser{UID: opts.UID},
		Audio: handshakeAudio{
			Format:  "pcm",
			Rate:    opts.SampleRate,
			Bits:    opts.BitsPerSample,
			Channel: opts.Channels,
		},
		Request: handshakeRequest{
			ModelName:      opts.ModelName,
			EnableITN:      opts.EnableITN,
			EnablePunc:     opts.EnablePunctuation,
			EnableDDC:      opts.EnableDDC,
			ShowUtterances: opts.ShowUtterances,
			ResultType:     "full",
			Hotwords:       opts.Hotwords,
		},
	}
	return json.Marshal(payload)
}

type resultPayload struct {
	Result struct {
		Text       string `json:"text"`
		Utterances []struct {
			Definite bool `json:"definite"`
		} `json:"utterances"`
	} `json:"result"`
}

// decodeResult extracts the transcript text and final-ness from a decoded
// FullServerResponse JSON payload. IsFinal is the last utterance's definite
// flag, or false when no utterances are present.
func decodeResult(payload []byte) (text string, isFinal bool, err error) {
	var decoded resultPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", false, err
	}
	if n := len(decoded.Result.Utterances); n > 0 {
		isFinal = decoded.Result.Utterances[n-1].Definite
	}
	return decoded.Result.Text, isFinal, nil
}
