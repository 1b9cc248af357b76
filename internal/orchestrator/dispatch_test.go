package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/amillerrr/video2music/pkg/models"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestQueueDispatcher_Publishes(t *testing.T) {
	client := &mockSQS{}
	store := newFakeStore("req-1")
	d := NewQueueDispatcher(client, "https://sqs/queue", store, testLogger())

	if err := d.Dispatch(context.Background(), testJob()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("SendMessage calls = %d, want 1", len(client.inputs))
	}
	in := client.inputs[0]
	if aws.ToString(in.QueueUrl) != "https://sqs/queue" {
		t.Errorf("QueueUrl = %q", aws.ToString(in.QueueUrl))
	}

	var job models.AnalysisJob
	if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &job); err != nil {
		t.Fatalf("message body is not a job: %v", err)
	}
	if job != testJob() {
		t.Errorf("queued job = %+v, want %+v", job, testJob())
	}
	if got := store.requestStatus("req-1"); got != models.StatusPending {
		t.Errorf("request status = %q, want pending", got)
	}
}

func TestQueueDispatcher_FailureMarksRequestFailed(t *testing.T) {
	client := &mockSQS{err: errors.New("queue unavailable")}
	store := newFakeStore("req-1")
	d := NewQueueDispatcher(client, "https://sqs/queue", store, testLogger())

	if err := d.Dispatch(context.Background(), testJob()); err == nil {
		t.Fatal("Dispatch() error = nil, want error")
	}

	if got := store.requestStatus("req-1"); got != models.StatusFailed {
		t.Errorf("request status = %q, want failed", got)
	}
	if got := store.messages["req-1"]; got != DispatchFailedMessage {
		t.Errorf("error message = %q, want %q", got, DispatchFailedMessage)
	}
	if got := store.lastJobStatus("job-1"); got != models.JobFailed {
		t.Errorf("job status = %q, want failed", got)
	}
}

func TestInlineDispatcher_RunsProcess(t *testing.T) {
	store := newFakeStore("req-1")
	d := NewInlineDispatcher(New(Config{Store: store, Mode: ModeSimulation, Logger: testLogger()}))

	if err := d.Dispatch(context.Background(), testJob()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := store.requestStatus("req-1"); got != models.StatusCompleted {
		t.Errorf("request status = %q, want completed", got)
	}
}
