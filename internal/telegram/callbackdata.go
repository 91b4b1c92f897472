package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"reviewdesk/internal/review"
)

// Callback data layouts. Telegram limits callback data to 64 bytes.
//
//	rv:<op>:<id>          row button
//	ba:<action>           batch decision on the selection
//	pg:<n>                go to page n
//	ct:<category>         switch category
//	rf                    refresh
//	dc:<decision>:<choice> confirmation prompt button
const (
	prefixRow      = "rv"
	prefixBatch    = "ba"
	prefixPage     = "pg"
	prefixCategory = "ct"
	prefixDecision = "dc"
	dataRefresh    = "rf"
)

const (
	opApprove = "a"
	opReject  = "r"
	opDetail  = "d"
	opSelect  = "s"
)

const (
	choiceConfirm     = "ok"
	choiceNoReason    = "none"
	choiceEmptyReason = "empty"
	choiceCancel      = "cancel"
)

func rowData(op string, id int64) string {
	return prefixRow + ":" + op + ":" + strconv.FormatInt(id, 10)
}

func batchData(a review.Action) string { return prefixBatch + ":" + string(a) }

func pageData(n int) string { return prefixPage + ":" + strconv.Itoa(n) }

func categoryData(c review.Category) string { return prefixCategory + ":" + c.Key() }

func decisionData(id, choice string) string { return prefixDecision + ":" + id + ":" + choice }

// callbackData is a parsed callback payload.
type callbackData struct {
	kind     string
	op       string
	id       int64
	n        int
	action   review.Action
	category review.Category
	decision string
	choice   string
}

func parseCallbackData(data string) (callbackData, error) {
	parts := strings.Split(data, ":")
	cb := callbackData{kind: parts[0]}
	var err error

	switch {
	case data == dataRefresh:
		return cb, nil
	case cb.kind == prefixRow && len(parts) == 3:
		cb.op = parts[1]
		switch cb.op {
		case opApprove, opReject, opDetail, opSelect:
		default:
			return cb, fmt.Errorf("unknown row operation %q", cb.op)
		}
		cb.id, err = strconv.ParseInt(parts[2], 10, 64)
	case cb.kind == prefixBatch && len(parts) == 2:
		cb.action, err = review.ParseAction(parts[1])
	case cb.kind == prefixPage && len(parts) == 2:
		cb.n, err = strconv.Atoi(parts[1])
	case cb.kind == prefixCategory && len(parts) == 2:
		cb.category, err = review.ParseCategory(parts[1])
	case cb.kind == prefixDecision && len(parts) == 3:
		cb.decision, cb.choice = parts[1], parts[2]
		switch cb.choice {
		case choiceConfirm, choiceNoReason, choiceEmptyReason, choiceCancel:
		default:
			return cb, fmt.Errorf("unknown decision choice %q", cb.choice)
		}
	default:
		return cb, fmt.Errorf("invalid callback data format: %q", data)
	}
	if err != nil {
		return cb, fmt.Errorf("invalid callback data %q: %w", data, err)
	}
	return cb, nil
}
