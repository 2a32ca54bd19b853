package health

import "testing"

func TestStatusWithoutDatabase(t *testing.T) {
	svc := NewService(nil)
	payload := svc.Status()

	if ok, _ := payload["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, got %v", payload)
	}
	if _, present := payload["db"]; present {
		t.Fatalf("expected no db key without a database, got %v", payload)
	}
}
