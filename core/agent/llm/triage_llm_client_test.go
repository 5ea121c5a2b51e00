package llm

import (
	"reflect"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestModerationCategories(t *testing.T) {
	tests := []struct {
		name string
		cats openai.ResultCategories
		want []string
	}{
		{
			name: "clean",
			cats: openai.ResultCategories{},
			want: nil,
		},
		{
			name: "hate only",
			cats: openai.ResultCategories{Hate: true},
			want: []string{"hate"},
		},
		{
			name: "threatening hate",
			cats: openai.ResultCategories{Hate: true, HateThreatening: true},
			want: []string{"hate", "hate/threatening"},
		},
		{
			name: "all reported",
			cats: openai.ResultCategories{
				Hate:            true,
				HateThreatening: true,
				SelfHarm:        true,
				Sexual:          true,
				Violence:        true,
			},
			want: []string{"hate", "hate/threatening", "self-harm", "sexual", "violence"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := moderationCategories(tt.cats)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("moderationCategories() = %v, want %v", got, tt.want)
			}
		})
	}
}
