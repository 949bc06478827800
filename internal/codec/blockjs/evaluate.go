package blockjs

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dop251/goja"

	"blockedit.ai/internal/blocks"
)

// DefaultEvalTimeout bounds a strict evaluation when ctx has no deadline.
const DefaultEvalTimeout = 5 * time.Second

var knownKeys = map[string]struct{}{
	"id": {}, "name": {}, "atlas": {}, "atlasTop": {}, "atlasBottom": {},
	"transparent": {}, "solid": {}, "sound": {},
}

// Evaluation is the block table as a JavaScript engine sees it.
type Evaluation struct {
	Records []blocks.Record
	// Unknown lists keys per block id that the text codec does not keep.
	Unknown map[int][]string
	// Problems are entries that exist in JS but have the wrong shape.
	Problems []string
}

// Evaluate runs the marked region through a JavaScript engine and converts
// the resulting array with strict type checks. The region is evaluated in
// an empty global scope, so references to other declarations of the file
// fail with an error.
func Evaluate(ctx context.Context, text string) (Evaluation, error) {
	r, err := Locate(text)
	if err != nil {
		return Evaluation{}, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultEvalTimeout)
		defer cancel()
	}

	vm := goja.New()
	src := "[" + r.Of(text) + "\n]"

	type result struct {
		val goja.Value
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		val, err := vm.RunString(src)
		resultCh <- result{val, err}
	}()

	var val goja.Value
	select {
	case <-ctx.Done():
		vm.Interrupt("timeout")
		return Evaluation{}, fmt.Errorf("evaluate BLOCK_DATA: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return Evaluation{}, fmt.Errorf("evaluate BLOCK_DATA: %w", res.err)
		}
		val = res.val
	}

	items, ok := val.Export().([]interface{})
	if !ok {
		return Evaluation{}, fmt.Errorf("evaluate BLOCK_DATA: not an array")
	}
	ev := Evaluation{Unknown: map[int][]string{}}
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			ev.Problems = append(ev.Problems, fmt.Sprintf("entry %d: not an object", i))
			continue
		}
		rec, unknown, problems := convertObject(obj)
		for _, p := range problems {
			ev.Problems = append(ev.Problems, fmt.Sprintf("entry %d: %s", i, p))
		}
		if rec == nil {
			continue
		}
		if len(unknown) > 0 {
			ev.Unknown[rec.ID] = unknown
		}
		ev.Records = append(ev.Records, *rec)
	}
	blocks.SortByID(ev.Records)
	return ev, nil
}

func convertObject(obj map[string]interface{}) (*blocks.Record, []string, []string) {
	var (
		rec      blocks.Record
		unknown  []string
		problems []string
	)
	for k := range obj {
		if _, ok := knownKeys[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	id, ok := toUint(obj["id"])
	if !ok {
		return nil, unknown, append(problems, fmt.Sprintf("id %v is not a non-negative integer", obj["id"]))
	}
	rec.ID = id

	if v, present := obj["name"]; present && v != nil {
		if s, ok := v.(string); ok {
			rec.Name = s
		} else {
			problems = append(problems, fmt.Sprintf("id %d: name is %T, not a string", id, v))
		}
	}

	if v, present := obj["atlas"]; present && v != nil {
		if c, ok := toCell(v); ok {
			rec.Atlas = c
		} else {
			problems = append(problems, fmt.Sprintf("id %d: atlas is not a [col, row] pair", id))
		}
	}
	for _, key := range []string{"atlasTop", "atlasBottom"} {
		v, present := obj[key]
		if !present || v == nil {
			continue
		}
		c, ok := toCell(v)
		if !ok {
			problems = append(problems, fmt.Sprintf("id %d: %s is not a [col, row] pair", id, key))
			continue
		}
		if key == "atlasTop" {
			rec.AtlasTop = &c
		} else {
			rec.AtlasBottom = &c
		}
	}

	for _, key := range []string{"transparent", "solid"} {
		v, present := obj[key]
		if !present || v == nil {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			problems = append(problems, fmt.Sprintf("id %d: %s is %T, not a boolean", id, key, v))
			continue
		}
		if key == "transparent" {
			rec.Transparent = b
		} else {
			rec.Solid = b
		}
	}

	if v, present := obj["sound"]; present && v != nil {
		m, ok := v.(map[string]interface{})
		if !ok {
			problems = append(problems, fmt.Sprintf("id %d: sound is %T, not an object", id, v))
		} else {
			var s blocks.Sound
			for key, dst := range map[string]*string{"step": &s.Step, "break": &s.Break, "place": &s.Place} {
				sv, present := m[key]
				if !present || sv == nil {
					continue
				}
				str, ok := sv.(string)
				if !ok {
					problems = append(problems, fmt.Sprintf("id %d: sound.%s is %T, not a string", id, key, sv))
					continue
				}
				*dst = str
			}
			rec.Sound = &s
		}
	}
	sort.Strings(problems)
	return &rec, unknown, problems
}

func toUint(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		if n < 0 || n > maxExactInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n < 0 || n != math.Trunc(n) || n > maxExactInt {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func toCell(v interface{}) (blocks.Cell, bool) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 2 {
		return blocks.Cell{}, false
	}
	col, ok1 := toUint(arr[0])
	row, ok2 := toUint(arr[1])
	if !ok1 || !ok2 {
		return blocks.Cell{}, false
	}
	return blocks.Cell{col, row}, true
}
