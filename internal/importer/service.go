package importer

import (
	"context"
	"io"

	"github.com/ahmedwadee/fbrflow/internal/invoice"
)

type Service struct {
	parser   *Parser
	invoices *invoice.Service
	seller   invoice.Party
}

// NewService builds the import pipeline. The seller party comes from
// configuration and is stamped onto every imported invoice; the files
// themselves only carry buyer and line-item data.
func NewService(invoices *invoice.Service, seller invoice.Party) *Service {
	return &Service{
		parser:   NewParser(),
		invoices: invoices,
		seller:   seller,
	}
}

// Import parses the file and persists every parseable invoice as a draft.
// Row-level problems come back alongside the created invoices; a non-nil
// error means the file as a whole was unreadable.
func (s *Service) Import(ctx context.Context, r io.Reader) ([]*invoice.Invoice, []*RowError, error) {
	res, err := s.parser.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	for i := range res.Params {
		res.Params[i].Seller = s.seller
	}

	invs, err := s.invoices.CreateBatch(ctx, res.Params)
	if err != nil {
		return nil, nil, err
	}

	return invs, res.Errors, nil
}
