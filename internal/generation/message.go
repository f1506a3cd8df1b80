package generation

import "textgend/pkg/types"

// FromAPI converts a protocol request.
func FromAPI(in types.GenerateRequest) Request {
	return Request{
		ModelID:       in.ModelID,
		Prompt:        in.Prompt,
		Temperature:   in.Temp,
		TopP:          in.TopP,
		RepeatPenalty: in.RepeatPenalty,
		Seed:          in.Seed,
		MaxTokens:     in.MaxSeqLen,
		WeightsURLs:   []string(in.WeightsURL),
		TokenizerURL:  in.TokenizerURL,
		ConfigURL:     in.ConfigURL,
	}
}

// ToMessage renders ev as a protocol message.
func ToMessage(ev Event) types.Message {
	switch e := ev.(type) {
	case Loading:
		return types.Message{Status: types.StatusLoading, Message: e.Message, RunID: e.RunID}
	case Progress:
		return types.Message{
			Status:    types.StatusGenerating,
			Message:   "Generating token",
			RunID:     e.RunID,
			Token:     e.Token,
			Sentence:  e.Output,
			Index:     e.Index,
			TotalTime: e.ElapsedMs,
			TokensSec: e.TokensPerSec,
			Prompt:    e.Prompt,
		}
	case Complete:
		return types.Message{Status: types.StatusComplete, Message: "complete", RunID: e.RunID, Output: e.Output}
	case Aborted:
		return types.Message{Status: types.StatusAborted, Message: "Aborted", RunID: e.RunID, Output: e.Output}
	case Errored:
		msg := "unknown error"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return types.Message{Status: types.StatusError, RunID: e.RunID, Error: msg, ErrorKind: ErrorKind(e.Err)}
	}
	return types.Message{Status: types.StatusError, Error: "unknown event", ErrorKind: KindUnknown}
}
