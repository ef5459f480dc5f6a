package structure

import (
	"errors"
	"testing"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
)

func TestExtractStructureDirectJSON(t *testing.T) {
	completion := `{"title":"회의 정리","summary":"주간 회의에서 배포 일정을 확정했다.","category":"업무","action_items":["배포 일정 공유"]}`

	got, err := ExtractStructure(completion)
	if err != nil {
		t.Fatalf("ExtractStructure failed: %v", err)
	}
	if got.Title != "회의 정리" {
		t.Errorf("expected title '회의 정리', got %q", got.Title)
	}
	if got.Category != models.CategoryWork {
		t.Errorf("expected category %q, got %q", models.CategoryWork, got.Category)
	}
	if len(got.ActionItems) != 1 || got.ActionItems[0] != "배포 일정 공유" {
		t.Errorf("unexpected action items: %v", got.ActionItems)
	}
}

func TestExtractStructureFencedBlock(t *testing.T) {
	completion := "다음은 분석 결과입니다:\n```json\n" +
		`{"title":"useState 공부","summary":"useState hook 동작을 정리했다.","category":"학습"}` +
		"\n```\n이상입니다."

	got, err := ExtractStructure(completion)
	if err != nil {
		t.Fatalf("ExtractStructure failed: %v", err)
	}
	if got.Title != "useState 공부" {
		t.Errorf("expected title 'useState 공부', got %q", got.Title)
	}
	if got.Category != models.CategoryStudy {
		t.Errorf("expected category %q, got %q", models.CategoryStudy, got.Category)
	}
}

func TestExtractStructureBalancedSpan(t *testing.T) {
	// No fences, JSON surrounded by prose. The brace inside the string
	// literal must not confuse the scanner.
	completion := `분석 결과: {"title":"아이디어 {초안}","summary":"새 기능 아이디어.","category":"아이디어"} 끝.`

	got, err := ExtractStructure(completion)
	if err != nil {
		t.Fatalf("ExtractStructure failed: %v", err)
	}
	if got.Title != "아이디어 {초안}" {
		t.Errorf("expected brace-containing title, got %q", got.Title)
	}
}

func TestExtractStructureNoJSON(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"모델이 JSON 없이 평문으로만 응답했습니다.",
		"```json\n깨진 블록",
	}
	for _, completion := range cases {
		_, err := ExtractStructure(completion)
		if !errors.Is(err, apperr.ErrExtractionFailed) {
			t.Errorf("completion %q: expected ErrExtractionFailed, got %v", completion, err)
		}
	}
}

func TestExtractStructureMissingFields(t *testing.T) {
	cases := []struct {
		name       string
		completion string
	}{
		{"missing title", `{"summary":"요약","category":"기타"}`},
		{"missing summary", `{"title":"제목","category":"기타"}`},
		{"missing category", `{"title":"제목","summary":"요약"}`},
		{"unknown category", `{"title":"제목","summary":"요약","category":"잡담"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractStructure(tc.completion)
			if !errors.Is(err, apperr.ErrMissingRequiredField) {
				t.Errorf("expected ErrMissingRequiredField, got %v", err)
			}
		})
	}
}

func TestExtractStructureNilActionItems(t *testing.T) {
	got, err := ExtractStructure(`{"title":"제목","summary":"요약","category":"일기"}`)
	if err != nil {
		t.Fatalf("ExtractStructure failed: %v", err)
	}
	if got.ActionItems == nil {
		t.Error("expected action items to be normalized to an empty slice")
	}
	if len(got.ActionItems) != 0 {
		t.Errorf("expected empty action items, got %v", got.ActionItems)
	}
}
