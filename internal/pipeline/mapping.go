package pipeline

import (
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/extraction"
)

func invoiceFromExtraction(documentID, clientID int64, x *extraction.InvoiceExtraction) *domain.Invoice {
	return &domain.Invoice{
		DocumentID:    &documentID,
		ClientID:      &clientID,
		InvoiceNumber: x.InvoiceNumber,
		IssueDate:     x.IssueDate,
		DueDate:       x.DueDate,
		TotalAmount:   x.TotalAmount,
		TaxAmount:     x.TaxAmount,
		Currency:      x.Currency,
		Status:        domain.InvoiceUnpaid,
		PaymentStatus: domain.PaymentUnpaid,
		Metadata:      nonNil(x.Metadata),
	}
}

func itemsFromExtraction(xs []extraction.ItemExtraction) []*domain.InvoiceItem {
	items := make([]*domain.InvoiceItem, 0, len(xs))
	for _, x := range xs {
		items = append(items, &domain.InvoiceItem{
			Description: x.Description,
			Quantity:    x.Quantity,
			UnitPrice:   x.UnitPrice,
			TotalPrice:  x.TotalPrice,
		})
	}
	return items
}

func statementFromExtraction(documentID int64, x *extraction.StatementExtraction) *domain.BankStatement {
	return &domain.BankStatement{
		DocumentID:      &documentID,
		StatementDate:   x.StatementDate,
		AccountNumber:   x.AccountNumber,
		BankName:        x.BankName,
		StartingBalance: x.StartingBalance,
		EndingBalance:   x.EndingBalance,
		Currency:        x.Currency,
		Metadata:        nonNil(x.Metadata),
	}
}

func transactionsFromExtraction(xs []extraction.TransactionExtraction) []*domain.BankTransaction {
	txns := make([]*domain.BankTransaction, 0, len(xs))
	for _, x := range xs {
		txns = append(txns, &domain.BankTransaction{
			Date:           x.Date,
			Description:    x.Description,
			Amount:         x.Amount,
			Type:           x.Type,
			Reference:      x.Reference,
			SenderReceiver: x.SenderReceiver,
			Metadata:       map[string]any{},
		})
	}
	return txns
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
