package programming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/radioforge/pkg/apperror"
)

func TestValidateSlotSumAcceptsFullHour(t *testing.T) {
	slots := []SlotRequest{
		{SlotType: "news", DurationSec: 1800},
		{SlotType: "music", DurationSec: 1500},
		{SlotType: "weather", DurationSec: 300},
	}
	assert.NoError(t, ValidateSlotSum(slots))
}

func TestValidateSlotSumRejectsShortHour(t *testing.T) {
	// 3300 seconds leaves a 5 minute gap in the hour.
	slots := []SlotRequest{
		{SlotType: "news", DurationSec: 1800},
		{SlotType: "music", DurationSec: 1500},
	}
	err := ValidateSlotSum(slots)
	require.Error(t, err)

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "slot_sum_mismatch", appErr.Code)
	assert.Equal(t, apperror.KindConfig, appErr.Kind)
	assert.Equal(t, 3300, appErr.Details["sum_sec"])
	assert.False(t, apperror.IsRetryable(err))
}

func TestValidateSlotSumRejectsBadSlots(t *testing.T) {
	assert.Error(t, ValidateSlotSum([]SlotRequest{{SlotType: "", DurationSec: 3600}}))
	assert.Error(t, ValidateSlotSum([]SlotRequest{{SlotType: "news", DurationSec: 0}, {SlotType: "music", DurationSec: 3600}}))
}

func TestValidateConversationFormat(t *testing.T) {
	// Solo shows need no format; duos and up must pick one.
	assert.NoError(t, validateConversationFormat("", 1))
	assert.Error(t, validateConversationFormat("", 2))

	for _, f := range []string{FormatInterview, FormatPanel, FormatDialogue, FormatDebate} {
		assert.NoError(t, validateConversationFormat(f, 2))
	}
	assert.Error(t, validateConversationFormat("monologue", 2))
}

func TestParseWallClock(t *testing.T) {
	short, err := ParseWallClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30:00", short.Format("15:04:05"))

	long, err := ParseWallClock("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, "23:59:59", long.Format("15:04:05"))

	_, err = ParseWallClock("25:00")
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
