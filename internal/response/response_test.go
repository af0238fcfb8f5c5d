package response

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Arya-Agent/internal/exchange"
	"Arya-Agent/internal/identity"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/media"
)

func TestSwapTexts(t *testing.T) {
	ok := Synthesize(SwapResult{Outcome: exchange.SwapOutcome{Success: true, TransactionID: "0x0abc"}}, Options{RichContent: true})
	assert.Equal(t, "Swap completed successfully! tx: 0x0abc", ok.Text)
	assert.Nil(t, ok.Attachment)

	failed := Synthesize(SwapResult{Outcome: exchange.SwapOutcome{ErrorDetail: "Insufficient tokens received"}}, Options{})
	assert.Equal(t, "Swap failed: Insufficient tokens received", failed.Text)

	assert.Equal(t, NoRouteText, Synthesize(NoRouteResult{}, Options{}).Text)
}

func TestFormatPrice(t *testing.T) {
	cases := map[float64]string{
		1.2345: "The price is: $1.23",
		0.125:  "The price is: $0.13",
		2:      "The price is: $2.00",
		1234.5: "The price is: $1234.50",
	}
	for value, want := range cases {
		assert.Equal(t, want, Synthesize(PriceResult{Price: exchange.PricePoint{Value: value}}, Options{}).Text)
	}
}

func TestFailureTexts(t *testing.T) {
	assert.Equal(t, InvalidSwapText, Synthesize(FailureResult{Action: intent.ActionSwap}, Options{}).Text)
	assert.Equal(t, InvalidPriceText, Synthesize(FailureResult{Action: intent.ActionPrice}, Options{}).Text)
	assert.Equal(t, InvalidTwitchText, Synthesize(FailureResult{Action: intent.ActionTwitch}, Options{}).Text)
	assert.Equal(t, InvalidYouTubeText, Synthesize(FailureResult{Action: intent.ActionYouTube}, Options{}).Text)
	assert.Equal(t, "timed out", Synthesize(FailureResult{Action: intent.ActionSwap, Reply: "timed out"}, Options{}).Text)
}

func summaryWithVideo() *media.Summary {
	return &media.Summary{
		Platform: intent.PlatformTwitch,
		UserID:   "42",
		Handle:   "satoshiwarlock",
		Bio:      "tips 0x1234 or warlock.stark",
		Recent: &media.Media{
			URL:          "https://www.twitch.tv/videos/v1",
			Title:        "Dungeon run",
			Description:  "raid",
			ThumbnailURL: "https://static/thumb-500x500.jpg",
			Source:       "StreamID 777",
		},
	}
}

func TestIdentityWithResolution(t *testing.T) {
	summary := summaryWithVideo()
	resp := Synthesize(IdentityResult{Summary: summary, Claim: identity.Parse(summary.Bio), Resolved: "0x0611"}, Options{RichContent: true})

	assert.Contains(t, resp.Text, "User ID: 42")
	assert.Contains(t, resp.Text, "Username: satoshiwarlock")
	assert.Contains(t, resp.Text, "Dungeon run")
	assert.Contains(t, resp.Text, "Starknet Address: 0x0000000000000000000000000000000000000000000000000000000000001234")
	assert.Contains(t, resp.Text, "Starknet ID: warlock.stark")
	assert.Contains(t, resp.Text, "Verified Recipient Address: 0x0611")

	require.NotNil(t, resp.Attachment)
	_, err := uuid.Parse(resp.Attachment.ID)
	assert.NoError(t, err)
	assert.Equal(t, "image/png", resp.Attachment.ContentType)
	assert.Equal(t, "StreamID 777", resp.Attachment.Source)
	assert.Equal(t, "https://static/thumb-500x500.jpg", resp.Attachment.URL)
	assert.Equal(t, "Dungeon run", resp.Attachment.Title)
	assert.Equal(t, "raid", resp.Attachment.Description)
	assert.Equal(t, "raid", resp.Attachment.Text)

	encoded, err := json.Marshal(resp.Attachment)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"contentType":"image/png"`)
}

func TestIdentityWithoutClaimOrMedia(t *testing.T) {
	summary := summaryWithVideo()
	summary.Bio = "just a streamer"
	summary.Recent = nil

	resp := Synthesize(IdentityResult{Summary: summary, Claim: identity.Parse(summary.Bio)}, Options{RichContent: true})
	assert.NotContains(t, resp.Text, "Verified Recipient Address")
	assert.NotContains(t, resp.Text, "Starknet")
	assert.Nil(t, resp.Attachment)
	assert.Len(t, strings.Split(resp.Text, "\n"), 2)
}

func TestTelegramSuppressesAttachment(t *testing.T) {
	resp := Synthesize(IdentityResult{Summary: summaryWithVideo()}, OptionsForSource("telegram"))
	assert.Nil(t, resp.Attachment)
	assert.True(t, OptionsForSource("discord").RichContent)
	assert.True(t, OptionsForSource("").RichContent)
}
