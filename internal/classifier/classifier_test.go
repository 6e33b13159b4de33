package classifier

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	text  string
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: f.text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(15)},
	}, nil
}

type stubLLM struct {
	resp  LLMResponse
	err   error
	calls int
	last  LLMRequest
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func TestBedrockLLMClientComplete(t *testing.T) {
	api := &fakeConverse{text: ` {"intent":"pricing_inquiry"} `}
	client := NewBedrockLLMClient(api)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:    "anthropic.test",
		System:   []string{"sys"},
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "how much is botox"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"pricing_inquiry"}`, resp.Text)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)
	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.test", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 1)
	assert.Len(t, api.input.Messages, 1)

	_, err = client.Complete(context.Background(), LLMRequest{})
	assert.Error(t, err)

	api.err = errors.New("throttled")
	_, err = client.Complete(context.Background(), LLMRequest{Model: "m", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "throttled")
}

func TestFallbackLLMClient(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	primary := &stubLLM{err: errors.New("down")}
	secondary := &stubLLM{resp: LLMResponse{Text: "ok"}}

	resp, err := NewFallbackLLMClient(primary, secondary, logger).Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)

	_, err = NewFallbackLLMClient(primary, nil, logger).Complete(context.Background(), LLMRequest{})
	assert.EqualError(t, err, "down")
}

func TestLLMClassifierParsesModelJSON(t *testing.T) {
	llm := &stubLLM{resp: LLMResponse{Text: "```json\n" + `{
		"intent": "SIDE_EFFECT_REPORT",
		"urgency": "HIGH",
		"confidence": 1.7,
		"sentiment": "Negative",
		"requiresHuman": true,
		"keywords": ["Numbness"],
		"riskFactors": ["complication"],
		"extractedInfo": {"serviceName": "filler"},
		"suggestedResponses": ["  ", "We're sorry to hear that."]
	}` + "\n```"}}
	c := NewLLMClassifier(llm, "model-x")

	pctx := triage.PatientContext{PatientID: "p1", PatientName: "Jane Doe"}
	got, err := c.Analyze(context.Background(), "My face feels numb after the filler", pctx)
	require.NoError(t, err)
	assert.Equal(t, triage.IntentSideEffectReport, got.Intent)
	assert.Equal(t, triage.UrgencyHigh, got.Urgency)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "negative", got.Sentiment)
	assert.True(t, got.RequiresHuman)
	assert.Equal(t, "filler", got.ExtractedInfo.ServiceName)
	assert.Equal(t, []string{"We're sorry to hear that."}, got.SuggestedResponses)

	assert.Equal(t, "model-x", llm.last.Model)
	require.Len(t, llm.last.Messages, 1)
	assert.Contains(t, llm.last.Messages[0].Content, "Jane Doe")
	assert.Contains(t, llm.last.Messages[0].Content, "numb after the filler")
}

func TestLLMClassifierErrors(t *testing.T) {
	_, err := NewLLMClassifier(&stubLLM{err: errors.New("timeout")}, "m").Analyze(context.Background(), "hi", triage.PatientContext{})
	assert.ErrorContains(t, err, "classifier: complete")

	_, err = NewLLMClassifier(&stubLLM{resp: LLMResponse{Text: "I cannot help"}}, "m").Analyze(context.Background(), "hi", triage.PatientContext{})
	assert.ErrorContains(t, err, "no JSON object")
}

func TestParseClassificationDefaults(t *testing.T) {
	got, err := ParseClassification(`{"intent":"made_up","urgency":"whenever","suggestedResponses":["` + strings.Repeat("x", 200) + `"]}`)
	require.NoError(t, err)
	assert.Equal(t, triage.IntentUnknown, got.Intent)
	assert.Equal(t, triage.UrgencyNone, got.Urgency)
	assert.Equal(t, 0.5, got.Confidence)
	assert.Len(t, got.SuggestedResponses[0], 160)
}

func TestKeywordClassifier(t *testing.T) {
	k := NewKeywordClassifier()
	cases := []struct {
		body     string
		intent   triage.Intent
		urgency  triage.Urgency
		keywords []string
		service  string
		reqHuman bool
	}{
		{body: "I think I'm having an allergic reaction", intent: triage.IntentEmergencyMedical, urgency: triage.UrgencyCritical, reqHuman: true},
		{body: "My face feels numb after the filler", intent: triage.IntentTreatmentConcern, urgency: triage.UrgencyHigh, keywords: []string{"numbness"}, service: "filler", reqHuman: true},
		{body: "lots of bruising and it's swollen", intent: triage.IntentTreatmentConcern, urgency: triage.UrgencyHigh, keywords: []string{"bruising", "swelling"}, reqHuman: true},
		{body: "STOP", intent: triage.IntentOptOutRequest, urgency: triage.UrgencyNone},
		{body: "START", intent: triage.IntentOptInRequest, urgency: triage.UrgencyNone},
		{body: "C", intent: triage.IntentAppointmentConfirmation, urgency: triage.UrgencyNone},
		{body: "I need to cancel my appointment", intent: triage.IntentAppointmentCancellation, urgency: triage.UrgencyNone},
		{body: "How much is lip filler?", intent: triage.IntentPricingInquiry, urgency: triage.UrgencyNone, service: "lip filler"},
		{body: "Can I book a hydrafacial?", intent: triage.IntentAppointmentBooking, urgency: triage.UrgencyNone, service: "hydrafacial"},
		{body: "what's your parking situation", intent: triage.IntentGeneralInquiry, urgency: triage.UrgencyLow},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			got, err := k.Analyze(context.Background(), tc.body, triage.PatientContext{})
			require.NoError(t, err)
			assert.Equal(t, tc.intent, got.Intent)
			assert.Equal(t, tc.urgency, got.Urgency)
			assert.Equal(t, tc.reqHuman, got.RequiresHuman)
			assert.Equal(t, tc.service, got.ExtractedInfo.ServiceName)
			if tc.keywords != nil {
				assert.Equal(t, tc.keywords, got.Keywords)
			}
		})
	}
}

func TestKeywordClassifierReschedulingExtractsTimes(t *testing.T) {
	got, err := NewKeywordClassifier().Analyze(context.Background(), "Can I reschedule to Friday at 3pm or Saturday morning?", triage.PatientContext{})
	require.NoError(t, err)
	assert.Equal(t, triage.IntentAppointmentRescheduling, got.Intent)
	assert.Equal(t, "friday", got.ExtractedInfo.AppointmentDate)
	assert.Equal(t, []string{"3pm", "morning"}, got.ExtractedInfo.PreferredTimes)
}

func TestKeywordClassifierRoutesComplication(t *testing.T) {
	got, err := NewKeywordClassifier().Analyze(context.Background(), "My face feels numb after the filler", triage.PatientContext{})
	require.NoError(t, err)
	path := triage.Route(triage.InboundMessage{}, got, triage.PatientContext{PatientID: "p1"})
	assert.Equal(t, triage.PathComplication, path.Kind)
}
