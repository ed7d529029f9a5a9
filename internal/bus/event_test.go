package bus

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/stackforum/internal/model"
)

func TestMarshal_WireFrame(t *testing.T) {
	n := model.Notification{
		ID:        "n1",
		Username:  "erin",
		Text:      "dave answered your question",
		Type:      model.NotificationTypeAnswer,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := Marshal(NotificationUpdate{Type: ChangeCreated, Notification: n})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var frame struct {
		Event   string `json:"event"`
		Payload struct {
			Type         string `json:"type"`
			Notification struct {
				ID       string `json:"_id"`
				Username string `json:"username"`
			} `json:"notification"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if frame.Event != "notificationUpdate" || frame.Payload.Type != "created" {
		t.Errorf("unexpected frame header: %s", data)
	}
	if frame.Payload.Notification.ID != "n1" || frame.Payload.Notification.Username != "erin" {
		t.Errorf("unexpected notification payload: %s", data)
	}
}

func TestDecode_EveryEvent(t *testing.T) {
	events := []Event{
		NotificationUpdate{Type: ChangeUpdated, Notification: model.Notification{ID: "n1", Username: "erin", Type: model.NotificationTypeFollow}},
		UserUpdate{Type: ChangeDeleted, User: model.Profile{Username: "bob", Following: []string{}, Followers: []string{}}},
		StoreUpdate{Type: ChangeAddition, Username: "bob", Count: 5},
		CollectionUpdate{Type: ChangeCreated, Collection: model.Collection{ID: "c1", Name: "later", Username: "bob", Questions: []string{"q1"}}},
		AnswerUpdate{QID: "q1", Answer: model.Answer{ID: "a1", Text: "t", AnsBy: "dave", Comments: []model.Comment{}}},
	}

	for _, e := range events {
		t.Run(string(e.Name()), func(t *testing.T) {
			data, err := Marshal(e)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !reflect.DeepEqual(got, e) {
				t.Errorf("decoded %#v, want %#v", got, e)
			}
		})
	}
}

func TestEncode_RejectsChangeTypeNotAllowedForEvent(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{"notification deleted", NotificationUpdate{Type: ChangeDeleted}},
		{"store created", StoreUpdate{Type: ChangeCreated, Username: "bob"}},
		{"user addition", UserUpdate{Type: ChangeAddition}},
		{"collection empty", CollectionUpdate{}},
		{"answer without qid", AnswerUpdate{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Encode(tc.event); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestUnmarshal_UnknownEvent(t *testing.T) {
	_, err := Unmarshal([]byte(`{"event":"badgeUpdate","payload":{}}`))
	if err == nil || !strings.Contains(err.Error(), "unknown event") {
		t.Errorf("expected unknown event error, got %v", err)
	}
}

func TestUnmarshal_InvalidPayload(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"event":"storeUpdate","payload":{"count":"many"}}`)); err == nil {
		t.Error("expected decode error")
	}
	if _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Error("expected envelope error")
	}
}

func TestUserUpdate_NeverCarriesPassword(t *testing.T) {
	u := &model.User{Username: "bob", Password: "hunter2"}
	data, err := Marshal(UserUpdate{Type: ChangeUpdated, User: u.PublicProfile()})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "password") || strings.Contains(string(data), "hunter2") {
		t.Errorf("frame leaks credentials: %s", data)
	}
}
