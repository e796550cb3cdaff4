// Package chaos corrupts valid fixture documents and tool output so tests can
// check that decoders fail with errors instead of panicking.
package chaos

import (
	"bytes"
	"math/rand"
)

// Mutation is one kind of corruption.
type Mutation int

const (
	Truncate Mutation = iota
	DeleteByte
	InsertStructural
	ReplaceByte
	DropQuote
	DuplicateSpan
	InvalidUTF8
	numMutations
)

// structural holds bytes that are significant to JSON and YAML.
var structural = []byte(`{}[]":,-#&*!|>` + "\n\t ")

// Corruptor applies seeded, reproducible mutations.
type Corruptor struct {
	rng *rand.Rand
}

// NewCorruptor returns a Corruptor seeded with seed.
func NewCorruptor(seed int64) *Corruptor {
	return &Corruptor{rng: rand.New(rand.NewSource(seed))}
}

// Corrupt returns a mutated copy of input; input itself is never modified.
func (c *Corruptor) Corrupt(input []byte) []byte {
	return c.Apply(Mutation(c.rng.Intn(int(numMutations))), input)
}

// Apply returns a copy of input with mutation m applied.
func (c *Corruptor) Apply(m Mutation, input []byte) []byte {
	out := bytes.Clone(input)
	if len(out) == 0 {
		return []byte{structural[c.rng.Intn(len(structural))]}
	}
	switch m {
	case Truncate:
		return out[:c.rng.Intn(len(out))]
	case DeleteByte:
		i := c.rng.Intn(len(out))
		return append(out[:i], out[i+1:]...)
	case InsertStructural:
		i := c.rng.Intn(len(out) + 1)
		b := structural[c.rng.Intn(len(structural))]
		return append(out[:i], append([]byte{b}, out[i:]...)...)
	case ReplaceByte:
		out[c.rng.Intn(len(out))] = byte(c.rng.Intn(256))
		return out
	case DropQuote:
		quotes := make([]int, 0)
		for i, b := range out {
			if b == '"' {
				quotes = append(quotes, i)
			}
		}
		if len(quotes) == 0 {
			return c.Apply(DeleteByte, out)
		}
		i := quotes[c.rng.Intn(len(quotes))]
		return append(out[:i], out[i+1:]...)
	case DuplicateSpan:
		start := c.rng.Intn(len(out))
		end := start + c.rng.Intn(len(out)-start) + 1
		span := bytes.Clone(out[start:end])
		return append(out[:end], append(span, out[end:]...)...)
	case InvalidUTF8:
		out[c.rng.Intn(len(out))] = 0xC0 | byte(c.rng.Intn(0x20))
		return out
	default:
		return out
	}
}

// CorruptN applies n successive mutations.
func (c *Corruptor) CorruptN(input []byte, n int) []byte {
	out := bytes.Clone(input)
	for i := 0; i < n; i++ {
		out = c.Corrupt(out)
	}
	return out
}

// GenerateCorpus returns count corrupted variants of valid with one to five
// mutations each.
func (c *Corruptor) GenerateCorpus(valid []byte, count int) [][]byte {
	corpus := make([][]byte, count)
	for i := range corpus {
		corpus[i] = c.CorruptN(valid, c.rng.Intn(5)+1)
	}
	return corpus
}
