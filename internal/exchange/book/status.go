package book

import "fmt"

// Status do ciclo de vida de uma ordem.
// UNMATCHED -> PARTIALLY_MATCHED -> MATCHED, qualquer estado -> CANCELED,
// e MATCHED -> WIN | LOST após a liquidação do mercado (fora deste pacote).
type Status uint8

const (
	Unmatched Status = iota
	PartiallyMatched
	Matched
	Win
	Lost
	Canceled
)

var statusNames = [...]string{
	Unmatched:        "UNMATCHED",
	PartiallyMatched: "PARTIALLY_MATCHED",
	Matched:          "MATCHED",
	Win:              "WIN",
	Lost:             "LOST",
	Canceled:         "CANCELED",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("invalid status %q", string(b))
}

// StatusFor deriva o status a partir do quanto já foi casado
func StatusFor(o *Order) Status {
	total := o.MatchableTotal()
	switch {
	case o.Matched.IsZero():
		return Unmatched
	case o.Matched.Eq(total):
		return Matched
	default:
		return PartiallyMatched
	}
}

// Counters guarda quantas ordens do book estão em cada status (membresia líquida, não eventos).
type Counters struct {
	Matched          uint64 `json:"matched"`
	Unmatched        uint64 `json:"unmatched"`
	PartiallyMatched uint64 `json:"partially_matched"`
	Win              uint64 `json:"win"`
	Lost             uint64 `json:"lost"`
	Canceled         uint64 `json:"canceled"`
}

// Transition registra uma mudança de status com o retrato dos contadores logo após.
type Transition struct {
	ReceiptID string   `json:"receipt_id"`
	From      Status   `json:"from"`
	To        Status   `json:"to"`
	Counters  Counters `json:"counters"`
}

// Admit conta uma ordem nova. Não existe estado anterior contado, então só incrementa.
func (c *Counters) Admit(to Status) {
	*c.slot(to)++
}

// Move decrementa o contador de origem e incrementa o de destino.
// Retorna false quando o status não mudou.
func (c *Counters) Move(from, to Status) bool {
	if from == to {
		return false
	}
	p := c.slot(from)
	if *p == 0 {
		panic(fmt.Sprintf("book: %s counter underflow", from))
	}
	*p--
	*c.slot(to)++
	return true
}

func (c *Counters) slot(s Status) *uint64 {
	switch s {
	case Unmatched:
		return &c.Unmatched
	case PartiallyMatched:
		return &c.PartiallyMatched
	case Matched:
		return &c.Matched
	case Win:
		return &c.Win
	case Lost:
		return &c.Lost
	case Canceled:
		return &c.Canceled
	}
	panic(fmt.Sprintf("book: unknown status %d", uint8(s)))
}
