// internal/providers/chatllm/classifier_test.go
package chatllm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-match/internal/engine/style"
)

type fakeModel struct {
	reply    *schema.Message
	err      error
	messages []*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.messages = input
	return f.reply, f.err
}

func TestClassify(t *testing.T) {
	fm := &fakeModel{reply: &schema.Message{
		Role:    schema.Assistant,
		Content: "```json\n{\"tags\":[\"카페\",\"vlog\"],\"quality\":64}\n```",
	}}
	c := NewWithModel(fm, nil)

	cls, err := c.Classify(context.Background(), "성수 카페 브이로그")
	require.NoError(t, err)
	assert.Equal(t, []string{"카페", "vlog"}, cls.Tags)
	assert.Equal(t, 64.0, cls.Quality)

	require.Len(t, fm.messages, 2)
	assert.Equal(t, schema.System, fm.messages[0].Role)
	assert.Contains(t, fm.messages[1].Content, "성수 카페 브이로그")
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		model   *fakeModel
		wantErr error
	}{
		{name: "model error", model: &fakeModel{err: errors.New("429 too many requests")}},
		{name: "empty reply", model: &fakeModel{reply: &schema.Message{}}, wantErr: style.ErrNoClassification},
		{name: "nil reply", model: &fakeModel{}, wantErr: style.ErrNoClassification},
		{name: "prose reply", model: &fakeModel{reply: &schema.Message{Content: "looks like food"}}, wantErr: style.ErrNoClassification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithModel(tt.model, nil).Classify(context.Background(), "text")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(context.Background(), Config{BaseURL: "http://localhost"}, nil)
	assert.Error(t, err)
}
