package resolve

import "github.com/nerrad567/gray-logic-bridge/internal/catalog"

// MinScore is the word overlap a fuzzy match needs. One shared word, like
// "luce" alone, is not enough to pick a device.
const MinScore = 2

// Candidates returns the three normalized phrases a device answers to:
// its display name, its code name (empty if absent), and the room name
// followed by the display name.
func Candidates(room *catalog.Room, dev *catalog.Device) [3]string {
	return [3]string{
		Normalize(dev.Name),
		Normalize(dev.Code.Name),
		Normalize(room.Name + " " + dev.Name),
	}
}

// ScoreMatch counts the words target and candidate share. Word order,
// repetition and partial words do not count. Either side empty scores 0.
func ScoreMatch(target, candidate string) int {
	return Tokenize(target).Overlap(Tokenize(candidate))
}

// bestScore returns the highest overlap between query and any candidate.
func bestScore(query TokenSet, cands [3]string) int {
	best := 0
	for _, c := range cands {
		if s := query.Overlap(Tokenize(c)); s > best {
			best = s
		}
	}
	return best
}
