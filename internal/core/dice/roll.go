package dice

// RollWithSource rolls each spec in order using src.
//
// Rolls appear in the same order as specs. Each Roll.Total is the sum of its
// Results and Result.Total is the sum of every die rolled.
func RollWithSource(src Source, specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0

	for _, spec := range specs {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return Result{}, ErrInvalidDiceSpec
		}

		results := make([]int, spec.Count)
		rollTotal := 0
		for i := 0; i < spec.Count; i++ {
			value := rollDie(src, spec.Sides)
			results[i] = value
			rollTotal += value
		}

		rolls = append(rolls, Roll{
			Sides:   spec.Sides,
			Results: results,
			Total:   rollTotal,
		})
		total += rollTotal
	}

	return Result{
		Rolls: rolls,
		Total: total,
	}, nil
}

// RollD20 rolls a single twenty-sided die.
func RollD20(src Source) int {
	return rollDie(src, 20)
}

func rollDie(src Source, sides int) int {
	return src.Intn(sides) + 1
}
