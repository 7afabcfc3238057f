// wordbank/wordbank.go
package wordbank

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// OptionCount is the number of candidate words offered to the drawer.
const OptionCount = 3

// WordList holds the words of one language, tagged by difficulty.
type WordList struct {
	Easy []string
	Hard []string
}

// Bank 按语言提供随机选词。并发安全。
type Bank struct {
	mu    sync.Mutex
	rng   *rand.Rand
	lists map[string]WordList
}

// NewBank returns a bank seeded with the built-in word lists.
func NewBank() *Bank {
	return NewBankWithSeed(time.Now().UnixNano())
}

// NewBankWithSeed returns a bank with a deterministic random source.
func NewBankWithSeed(seed int64) *Bank {
	return &Bank{
		rng: rand.New(rand.NewSource(seed)),
		lists: map[string]WordList{
			"cs": {Easy: czechEasy, Hard: czechHard},
			"en": {Easy: englishEasy, Hard: englishHard},
		},
	}
}

// Options generates an option set: at least one easy word is guaranteed, the
// remaining slots are filled from the full pool, and the final order is
// shuffled so difficulty is not positionally predictable. Unknown languages
// fall back to Czech.
func (b *Bank) Options(language string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, ok := b.lists[language]
	if !ok {
		list = b.lists["cs"]
	}

	picked := make([]string, 0, OptionCount)
	seen := make(map[string]bool)

	easy := list.Easy[b.rng.Intn(len(list.Easy))]
	picked = append(picked, easy)
	seen[easy] = true

	pool := make([]string, 0, len(list.Easy)+len(list.Hard))
	pool = append(pool, list.Easy...)
	pool = append(pool, list.Hard...)

	for len(picked) < OptionCount {
		w := pool[b.rng.Intn(len(pool))]
		if seen[w] {
			continue
		}
		seen[w] = true
		picked = append(picked, w)
	}

	b.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked
}

// IsEasy reports whether the word belongs to the easy list of the language.
func (b *Bank) IsEasy(language, word string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, ok := b.lists[language]
	if !ok {
		list = b.lists["cs"]
	}
	for _, w := range list.Easy {
		if w == word {
			return true
		}
	}
	return false
}

// RevealIndex picks one not-yet-revealed, non-space rune position uniformly
// at random. Returns -1 when every letter is already revealed.
func (b *Bank) RevealIndex(word string, revealed []bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	runes := []rune(word)
	candidates := make([]int, 0, len(runes))
	for i, r := range runes {
		if r == ' ' {
			continue
		}
		if i < len(revealed) && revealed[i] {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[b.rng.Intn(len(candidates))]
}

// MaskWord renders the word for non-drawers: revealed letters are shown,
// hidden letters become underscores, spaces survive, everything joined by
// single spaces ("K _ Č _ A").
func MaskWord(word string, revealed []bool) string {
	runes := []rune(word)
	parts := make([]string, len(runes))
	for i, r := range runes {
		switch {
		case r == ' ':
			parts[i] = " "
		case i < len(revealed) && revealed[i]:
			parts[i] = string(r)
		default:
			parts[i] = "_"
		}
	}
	return strings.Join(parts, " ")
}
