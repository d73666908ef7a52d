package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

func TestNewCohereRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewCohere(CohereConfig{APIKey: " "})
	require.ErrorIs(t, err, ErrNoCredential)

	c, err := NewCohere(CohereConfig{APIKey: "test-key"})
	require.NoError(t, err)
	require.Equal(t, DefaultModel, c.model)
	require.Equal(t, DefaultVisionModel, c.visionModel)
}

func TestBuildContentAppendsImagesAsDataURLs(t *testing.T) {
	t.Parallel()

	content := buildContent(Request{
		Prompt: "분석",
		Images: []crawler.Image{{Base64: "AAA"}, {MIMEType: "image/png", Base64: "BBB"}},
	})
	require.Len(t, content, 3)
	require.Equal(t, "text", content[0].Type)
	require.Equal(t, "분석", content[0].Text.Text)
	require.Equal(t, "data:image/jpeg;base64,AAA", content[1].ImageUrl.ImageUrl.Url)
	require.Equal(t, "data:image/png;base64,BBB", content[2].ImageUrl.ImageUrl.Url)
}

func TestMessageText(t *testing.T) {
	t.Parallel()

	text, err := messageText([]byte(`{"role":"assistant","content":[{"type":"text","text":"{\"a\":"},{"type":"thinking"},{"type":"text","text":"1}"}]}`))
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, text)

	_, err = messageText([]byte(`{"content":[]}`))
	require.Error(t, err)
}
