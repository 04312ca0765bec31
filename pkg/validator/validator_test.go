package validator

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

type queryRequest struct {
	Question string `json:"question" validate:"required,notblank,max=20"`
	K        int    `json:"k" validate:"min=0,max=50"`
}

func TestValidateWithLang(t *testing.T) {
	tests := []struct {
		name   string
		req    queryRequest
		lang   string
		fields []string
		msg    string
	}{
		{name: "valid", req: queryRequest{Question: "红烧肉怎么做", K: 3}},
		{name: "missing question", req: queryRequest{}, lang: "en", fields: []string{"question"}, msg: "question is a required field"},
		{name: "blank question", req: queryRequest{Question: "   "}, lang: "en", fields: []string{"question"}, msg: "question must not be blank"},
		{name: "blank question zh", req: queryRequest{Question: "  "}, lang: "zh-CN,zh;q=0.9", fields: []string{"question"}, msg: "question不能为空白"},
		{name: "k out of range", req: queryRequest{Question: "q", K: 51}, lang: "en", fields: []string{"k"}},
		{name: "negative k", req: queryRequest{Question: "q", K: -1}, fields: []string{"k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verrs := StructWithLang(tt.req, tt.lang)
			if tt.fields == nil {
				assert.Nil(t, verrs)
				return
			}
			require.NotNil(t, verrs)
			got := make([]string, 0, len(verrs.Errors))
			for _, fe := range verrs.Errors {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.fields, got)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, verrs.Errors[0].Message)
			}
		})
	}
}

func TestValidationErrors_Errno(t *testing.T) {
	verrs := StructWithLang(queryRequest{K: 99}, LangEN)
	require.NotNil(t, verrs)
	assert.Len(t, verrs.Messages(), 2)

	e := verrs.Errno()
	assert.True(t, stderrors.Is(e, errors.ErrInvalidParam))
	assert.Contains(t, e.MessageEN, "question is a required field")
	assert.Contains(t, verrs.Error(), "validation failed: ")
}

func TestGlobal(t *testing.T) {
	assert.Same(t, Global(), Global())
	assert.NoError(t, Global().Validate(queryRequest{Question: "ok"}))
}
