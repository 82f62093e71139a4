// Package iped generates balanced task matrices for IPED studies.
//
// For R respondents and T tasks per respondent, every task activates
// between MinActiveElements and MaxActiveElements of the study's N
// elements. Selection is greedy on least-exposed elements so coverage
// stays balanced across the whole matrix.
package iped

import (
	"fmt"
	"math/rand"
	"sort"

	"iped-studio/models"
)

// Generator produces task matrices. A fixed seed yields a reproducible
// matrix, which the wizard uses when previewing before launch.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Validate checks IPED parameters against the element list before
// generation.
func Validate(params models.IPEDParameters, elementIDs []string) error {
	if params.NumElements < 2 {
		return fmt.Errorf("num_elements must be at least 2, got %d", params.NumElements)
	}
	if len(elementIDs) != params.NumElements {
		return fmt.Errorf("expected %d elements, got %d", params.NumElements, len(elementIDs))
	}
	if params.TasksPerConsumer < 1 {
		return fmt.Errorf("tasks_per_consumer must be at least 1, got %d", params.TasksPerConsumer)
	}
	if params.NumberOfRespondents < 1 {
		return fmt.Errorf("number_of_respondents must be at least 1, got %d", params.NumberOfRespondents)
	}
	if params.MinActiveElements < 1 {
		return fmt.Errorf("min_active_elements must be at least 1, got %d", params.MinActiveElements)
	}
	if params.MaxActiveElements < params.MinActiveElements {
		return fmt.Errorf("max_active_elements (%d) must not be below min_active_elements (%d)",
			params.MaxActiveElements, params.MinActiveElements)
	}
	if params.MaxActiveElements > params.NumElements {
		return fmt.Errorf("max_active_elements (%d) exceeds element count (%d)",
			params.MaxActiveElements, params.NumElements)
	}
	return nil
}

// Generate builds the full task matrix for all respondents.
func (g *Generator) Generate(params models.IPEDParameters, elementIDs []string) (models.TaskMatrix, error) {
	if err := Validate(params, elementIDs); err != nil {
		return nil, err
	}

	exposure := make(map[string]int, len(elementIDs))
	for _, id := range elementIDs {
		exposure[id] = 0
	}

	matrix := make(models.TaskMatrix, params.NumberOfRespondents)
	for r := 0; r < params.NumberOfRespondents; r++ {
		tasks := make([]models.TaskCell, 0, params.TasksPerConsumer)
		for t := 0; t < params.TasksPerConsumer; t++ {
			k := params.MinActiveElements
			if spread := params.MaxActiveElements - params.MinActiveElements; spread > 0 {
				k += g.rng.Intn(spread + 1)
			}

			active := g.pickLeastExposed(elementIDs, exposure, k)

			shown := make(map[string]int, len(elementIDs))
			for _, id := range elementIDs {
				shown[id] = 0
			}
			for _, id := range active {
				shown[id] = 1
				exposure[id]++
			}

			tasks = append(tasks, models.TaskCell{
				TaskID:        fmt.Sprintf("r%d_t%d", r, t),
				ElementsShown: shown,
			})
		}
		matrix[models.RespondentKey(r)] = tasks
	}

	return matrix, nil
}

// pickLeastExposed selects k element IDs with the lowest exposure
// counts. Ties break randomly via a pre-shuffle so low-count elements
// rotate instead of always winning in input order.
func (g *Generator) pickLeastExposed(elementIDs []string, exposure map[string]int, k int) []string {
	candidates := make([]string, len(elementIDs))
	copy(candidates, elementIDs)
	g.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return exposure[candidates[i]] < exposure[candidates[j]]
	})
	return candidates[:k]
}

// Summary aggregates matrix statistics for the wizard preview page.
type Summary struct {
	TotalTasks         int            `json:"total_tasks"`
	TotalRespondents   int            `json:"total_respondents"`
	TasksPerRespondent int            `json:"tasks_per_respondent"`
	MinExposure        int            `json:"min_exposure"`
	MaxExposure        int            `json:"max_exposure"`
	ElementExposure    map[string]int `json:"element_exposure"`
}

// Summarize computes exposure statistics over a generated matrix.
func Summarize(matrix models.TaskMatrix) Summary {
	s := Summary{ElementExposure: make(map[string]int)}
	s.TotalRespondents = len(matrix)

	for _, tasks := range matrix {
		s.TotalTasks += len(tasks)
		for _, task := range tasks {
			for id, shown := range task.ElementsShown {
				if _, ok := s.ElementExposure[id]; !ok {
					s.ElementExposure[id] = 0
				}
				if shown == 1 {
					s.ElementExposure[id]++
				}
			}
		}
	}

	if s.TotalRespondents > 0 {
		s.TasksPerRespondent = s.TotalTasks / s.TotalRespondents
	}

	first := true
	for _, count := range s.ElementExposure {
		if first {
			s.MinExposure, s.MaxExposure = count, count
			first = false
			continue
		}
		if count < s.MinExposure {
			s.MinExposure = count
		}
		if count > s.MaxExposure {
			s.MaxExposure = count
		}
	}

	return s
}
