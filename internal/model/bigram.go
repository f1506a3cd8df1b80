package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	json "github.com/goccy/go-json"
)

// bigramMagic opens a bigram weights blob. The header is followed by a
// little-endian uint32 version, a uint32 vocab size and vocab*vocab float32
// logits in row-major order (row = previous token).
var bigramMagic = [4]byte{'B', 'G', 'R', 'M'}

const bigramVersion = 1

// maxBigramVocab bounds the header's vocab so the payload size cannot overflow.
const maxBigramVocab = math.MaxUint16

// Config is the subset of a model config.json the builtin backend reads.
type Config struct {
	ModelType string `json:"model_type"`
	VocabSize int    `json:"vocab_size"`
	Name      string `json:"_name_or_path"`
	SeqLen    int    `json:"seq_len"`
}

// ParseConfig decodes config.json. An empty document yields a zero Config.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	if c.VocabSize < 0 || c.SeqLen < 0 {
		return c, errors.New("parse config: negative size")
	}
	return c, nil
}

// MarshalBigramWeights encodes a vocab x vocab logits table.
func MarshalBigramWeights(vocab int, logits []float32) ([]byte, error) {
	if vocab <= 0 || len(logits) != vocab*vocab {
		return nil, fmt.Errorf("bigram weights: want %d logits, have %d", vocab*vocab, len(logits))
	}
	buf := bytes.NewBuffer(make([]byte, 0, 12+4*len(logits)))
	buf.Write(bigramMagic[:])
	_ = binary.Write(buf, binary.LittleEndian, uint32(bigramVersion))
	_ = binary.Write(buf, binary.LittleEndian, uint32(vocab))
	_ = binary.Write(buf, binary.LittleEndian, logits)
	return buf.Bytes(), nil
}

func parseBigramWeights(data []byte) (int, []float32, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], bigramMagic[:]) {
		return 0, nil, errors.New("bigram weights: bad magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != bigramVersion {
		return 0, nil, fmt.Errorf("bigram weights: unsupported version %d", v)
	}
	vocab := int(binary.LittleEndian.Uint32(data[8:12]))
	if vocab == 0 || vocab > maxBigramVocab {
		return 0, nil, fmt.Errorf("bigram weights: vocab %d out of range", vocab)
	}
	body := data[12:]
	if uint64(len(body)) != 4*uint64(vocab)*uint64(vocab) {
		return 0, nil, fmt.Errorf("bigram weights: vocab %d does not match %d payload bytes", vocab, len(body))
	}
	logits := make([]float32, vocab*vocab)
	for i := range logits {
		logits[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:]))
	}
	return vocab, logits, nil
}

// Bigram is the pure-Go builtin backend: next-token logits depend only on the
// previous token.
type Bigram struct{}

func (Bigram) Name() string { return "bigram" }

func (Bigram) Load(a Assets) (Model, error) {
	cfg, err := ParseConfig(a.Config)
	if err != nil {
		return nil, err
	}
	tok, err := ParseTokenizer(a.Tokenizer)
	if err != nil {
		return nil, err
	}
	vocab, logits, err := parseBigramWeights(a.Weights)
	if err != nil {
		return nil, err
	}
	if cfg.VocabSize != 0 && cfg.VocabSize != vocab {
		return nil, fmt.Errorf("config vocab_size %d does not match weights vocab %d", cfg.VocabSize, vocab)
	}
	if tok.VocabSize() > vocab {
		return nil, fmt.Errorf("tokenizer has %d ids but weights cover %d", tok.VocabSize(), vocab)
	}
	return &bigramModel{cfg: cfg, tok: tok, vocab: vocab, logits: logits}, nil
}

type bigramModel struct {
	cfg     Config
	tok     *Tokenizer
	vocab   int
	logits  []float32
	row     []float32
	sampler *Sampler
	// generated ids; the prompt is not part of the penalty window
	tokens []int
	pos    int
	last   int
	primed bool
}

func (m *bigramModel) Prime(prompt string, p SamplingParams) (string, error) {
	m.sampler = NewSampler(p)
	m.tokens = m.tokens[:0]
	m.primed = false
	ids := m.tok.Encode(prompt)
	m.last = m.tok.BOS()
	if len(ids) > 0 {
		m.last = ids[len(ids)-1]
	}
	m.pos = len(ids)
	s, err := m.step()
	if err != nil {
		return "", err
	}
	m.primed = true
	return s, nil
}

func (m *bigramModel) NextToken() (string, error) {
	if !m.primed {
		return "", ErrNotPrimed
	}
	return m.step()
}

func (m *bigramModel) step() (string, error) {
	if m.cfg.SeqLen > 0 && m.pos >= m.cfg.SeqLen {
		return "", fmt.Errorf("sequence length %d exceeded", m.cfg.SeqLen)
	}
	if m.last < 0 || m.last >= m.vocab {
		return "", fmt.Errorf("token id %d out of range", m.last)
	}
	if m.row == nil {
		m.row = make([]float32, m.vocab)
	}
	copy(m.row, m.logits[m.last*m.vocab:(m.last+1)*m.vocab])
	id := m.sampler.Sample(m.row, m.tokens)
	m.tokens = append(m.tokens, id)
	m.last = id
	m.pos++
	return m.tok.Decode(id), nil
}

func (m *bigramModel) Close() error {
	m.logits = nil
	m.row = nil
	return nil
}

func init() { Register(Bigram{}) }
