package classification

import (
	"sort"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Entry - позиция студента в рейтинге.
type Entry struct {
	Rank           shared.Rank
	Classification *Classification
}

// Ranking - отсортированный по средней список классификаций.
type Ranking struct {
	entries []Entry
}

// NewRanking сортирует классификации по средней (по убыванию) и присваивает места.
// Одинаковая средняя - одинаковое место ("shared rank"), порядок внутри - по StudentID.
func NewRanking(items []*Classification) *Ranking {
	sorted := make([]*Classification, 0, len(items))
	for _, c := range items {
		if c != nil {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Average != sorted[j].Average {
			return sorted[i].Average > sorted[j].Average
		}
		return sorted[i].StudentID < sorted[j].StudentID
	})

	entries := make([]Entry, len(sorted))
	for i, c := range sorted {
		rank := shared.Rank(i + 1)
		if i > 0 && c.Average == sorted[i-1].Average {
			rank = entries[i-1].Rank
		}
		entries[i] = Entry{Rank: rank, Classification: c}
	}
	return &Ranking{entries: entries}
}

// Len возвращает количество записей.
func (r *Ranking) Len() int {
	return len(r.entries)
}

// Entries возвращает копию всех записей.
func (r *Ranking) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Page возвращает страницу рейтинга.
func (r *Ranking) Page(p shared.Pagination) []Entry {
	from := p.Offset()
	if from < 0 || from >= len(r.entries) {
		return nil
	}
	to := len(r.entries)
	if from < to-p.Limit() {
		to = from + p.Limit()
	}
	out := make([]Entry, to-from)
	copy(out, r.entries[from:to])
	return out
}

// Approved возвращает количество одобренных студентов.
func (r *Ranking) Approved() int {
	n := 0
	for _, e := range r.entries {
		if e.Classification.Status.IsApproved() {
			n++
		}
	}
	return n
}

// ByPole разбивает классификации по полюсам; каждый полюс ранжируется отдельно.
// Полюса упорядочены по ID.
func ByPole(items []*Classification) ([]string, map[string]*Ranking) {
	grouped := make(map[string][]*Classification)
	for _, c := range items {
		if c == nil {
			continue
		}
		grouped[c.PoleID] = append(grouped[c.PoleID], c)
	}

	poles := make([]string, 0, len(grouped))
	rankings := make(map[string]*Ranking, len(grouped))
	for pole, cs := range grouped {
		poles = append(poles, pole)
		rankings[pole] = NewRanking(cs)
	}
	sort.Strings(poles)
	return poles, rankings
}
