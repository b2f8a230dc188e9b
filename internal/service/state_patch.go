package service

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"battlearena/internal/models"
)

// StatePatch targets one CharacterState with a partial update.
type StatePatch struct {
	ID    string
	Patch models.CharacterStatePatch
}

type patchEntry struct {
	ID                         string `mapstructure:"id"`
	LegacyID                   string `mapstructure:"_id"`
	models.CharacterStatePatch `mapstructure:",squash"`
}

func decodePatch(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// DecodeStatePatches accepts the two payload shapes game clients send for
// bulk state updates: a list of objects carrying "_id" (or "id") next to the
// fields to change, or an object keyed by state id. Map entries are returned
// sorted by id.
func DecodeStatePatches(raw any) ([]StatePatch, error) {
	switch v := raw.(type) {
	case nil:
		return []StatePatch{}, nil
	case []any:
		patches := make([]StatePatch, 0, len(v))
		for i, item := range v {
			var entry patchEntry
			if err := decodePatch(item, &entry); err != nil {
				return nil, invalid("characterStates[%d]: %s", i, err.Error())
			}
			id := entry.LegacyID
			if id == "" {
				id = entry.ID
			}
			if id == "" {
				return nil, invalid("characterStates[%d]: _id is required", i)
			}
			patches = append(patches, StatePatch{ID: id, Patch: entry.CharacterStatePatch})
		}
		return patches, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		patches := make([]StatePatch, 0, len(v))
		for _, id := range keys {
			var patch models.CharacterStatePatch
			if err := decodePatch(v[id], &patch); err != nil {
				return nil, invalid("characterStates.%s: %s", id, err.Error())
			}
			patches = append(patches, StatePatch{ID: id, Patch: patch})
		}
		return patches, nil
	default:
		return nil, invalid("characterStates must be a list or an object, got %s", fmt.Sprintf("%T", raw))
	}
}
