package validator

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

type sample struct {
	Color    string `binding:"omitempty,hex_color"`
	Start    string `binding:"omitempty,hhmm"`
	Username string `binding:"omitempty,username"`
	Status   string `binding:"omitempty,appointment_status"`
	TxType   string `binding:"omitempty,transaction_type"`
	CatType  string `binding:"omitempty,category_type"`
}

func TestRegister(t *testing.T) {
	Register()

	tests := []struct {
		name  string
		input sample
		valid bool
	}{
		{"empty", sample{}, true},
		{"valid_color", sample{Color: "#1a2B3c"}, true},
		{"short_color", sample{Color: "#fff"}, false},
		{"color_without_hash", sample{Color: "ffffff"}, false},
		{"valid_start", sample{Start: "09:30"}, true},
		{"single_digit_hour", sample{Start: "9:30"}, true},
		{"start_out_of_range", sample{Start: "24:00"}, false},
		{"valid_username", sample{Username: "ink_master_7"}, true},
		{"username_with_space", sample{Username: "ink master"}, false},
		{"valid_status", sample{Status: "in_progress"}, true},
		{"unknown_status", sample{Status: "done"}, false},
		{"income", sample{TxType: "income"}, true},
		{"transfer_not_supported", sample{TxType: "transfer"}, false},
		{"expense_category", sample{CatType: "expense"}, true},
		{"unknown_category_type", sample{CatType: "asset"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(tt.input)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
