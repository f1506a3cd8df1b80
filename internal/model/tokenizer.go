package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

type tokenizerJSON struct {
	Model struct {
		Type     string         `json:"type"`
		Vocab    map[string]int `json:"vocab"`
		UnkToken string         `json:"unk_token"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// Tokenizer is a vocabulary-driven tokenizer reading the Hugging Face
// tokenizer.json layout. Encoding is greedy longest match over the vocab with
// GPT-2 style space markers.
type Tokenizer struct {
	encoder map[string]int
	decoder []string
	special map[int]bool
	maxLen  int // longest vocab entry in bytes
	unkID   int // -1 when the vocab has no unknown token
	bosID   int // -1 when absent
}

// ParseTokenizer decodes a tokenizer.json document.
func ParseTokenizer(data []byte) (*Tokenizer, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if len(tj.Model.Vocab) == 0 {
		return nil, fmt.Errorf("parse tokenizer: empty vocab")
	}
	// ids index the decoder table, so they must stay near the entry count
	limit := max(4*(len(tj.Model.Vocab)+len(tj.AddedTokens)), 1024)
	checkID := func(id int) error {
		if id < 0 || id >= limit {
			return fmt.Errorf("parse tokenizer: id %d out of range [0,%d)", id, limit)
		}
		return nil
	}
	maxID := -1
	for _, id := range tj.Model.Vocab {
		if err := checkID(id); err != nil {
			return nil, err
		}
		maxID = max(maxID, id)
	}
	for _, at := range tj.AddedTokens {
		if err := checkID(at.ID); err != nil {
			return nil, err
		}
		maxID = max(maxID, at.ID)
	}
	t := &Tokenizer{
		encoder: make(map[string]int, len(tj.Model.Vocab)+len(tj.AddedTokens)),
		decoder: make([]string, maxID+1),
		special: map[int]bool{},
		unkID:   -1,
		bosID:   -1,
	}
	for tok, id := range tj.Model.Vocab {
		t.encoder[tok] = id
		t.decoder[id] = tok
		t.maxLen = max(t.maxLen, len(tok))
	}
	for _, at := range tj.AddedTokens {
		t.encoder[at.Content] = at.ID
		t.decoder[at.ID] = at.Content
		t.maxLen = max(t.maxLen, len(at.Content))
		if at.Special {
			t.special[at.ID] = true
			switch at.Content {
			case "<|endoftext|>", "<s>", "<bos>":
				if t.bosID < 0 {
					t.bosID = at.ID
				}
			}
		}
	}
	if tj.Model.UnkToken != "" {
		if id, ok := t.encoder[tj.Model.UnkToken]; ok {
			t.unkID = id
		}
	}
	return t, nil
}

// VocabSize is one past the largest token id.
func (t *Tokenizer) VocabSize() int { return len(t.decoder) }

// BOS returns the beginning-of-sequence id, or 0 when none is defined.
func (t *Tokenizer) BOS() int {
	if t.bosID < 0 {
		return 0
	}
	return t.bosID
}

// Encode splits text into ids. Runes no vocab entry covers map to the unknown
// token when one exists and are dropped otherwise.
func (t *Tokenizer) Encode(text string) []int {
	s := strings.ReplaceAll(text, " ", "Ġ")
	s = strings.ReplaceAll(s, "\n", "Ċ")
	var ids []int
	for len(s) > 0 {
		n := min(t.maxLen, len(s))
		matched := false
		for ; n > 0; n-- {
			if id, ok := t.encoder[s[:n]]; ok {
				ids = append(ids, id)
				s = s[n:]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		_, size := utf8.DecodeRuneInString(s)
		if t.unkID >= 0 {
			ids = append(ids, t.unkID)
		}
		s = s[size:]
	}
	return ids
}

// Decode renders ids as text. Special tokens and out-of-range ids render as
// the empty string.
func (t *Tokenizer) Decode(ids ...int) string {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(t.decoder) || t.special[id] {
			continue
		}
		b.WriteString(t.decoder[id])
	}
	return decodeMarkers.Replace(b.String())
}

var decodeMarkers = strings.NewReplacer("Ġ", " ", "▁", " ", "Ċ", "\n")
