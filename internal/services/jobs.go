package services

import (
	"github.com/google/uuid"

	"github.com/Riboost-Studio/chalan/internal/model"
	"github.com/Riboost-Studio/chalan/internal/receipt"
)

// PrintJob is one physical output. It lives only while a backend handles it.
type PrintJob struct {
	ID         string
	Kind       model.JobKind
	Copy       int
	Copies     int
	Commands   receipt.Sequence
	Paper      model.PaperWidth
	OpenDrawer bool
	DrawerPin  int
}

func newJob(kind model.JobKind, copyIndex, copies int, seq receipt.Sequence, paper model.PaperWidth) PrintJob {
	return PrintJob{
		ID:       uuid.NewString(),
		Kind:     kind,
		Copy:     copyIndex,
		Copies:   copies,
		Commands: seq,
		Paper:    paper,
	}
}
