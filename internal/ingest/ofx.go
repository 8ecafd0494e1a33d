package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags missing their closing bracket at the end of a line.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFX carries no categories; a few transaction types imply one.
var ofxTypeCategories = map[string]string{
	"INT":    "interest",
	"DIV":    "interest",
	"FEE":    "bank_fees",
	"SRVCHG": "bank_fees",
	"ATM":    "cash",
	"CASH":   "cash",
	"CHECK":  "checks",
}

// OFXParser implements OFX/QFX file parsing.
type OFXParser struct {
	userID string
}

// NewOFXParser creates a parser assigning transactions to userID.
func NewOFXParser(userID string) *OFXParser {
	return &OFXParser{userID: userID}
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *OFXParser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file. Debits become expenses and credits
// become income.
func (p *OFXParser) ParseFile(ctx context.Context, reader io.Reader) ([]*model.Transaction, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var transactions []*model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			transactions = append(transactions, p.convertAll(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			transactions = append(transactions, p.convertAll(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))...)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *OFXParser) convertAll(list []ofxgo.Transaction, accountID string) []*model.Transaction {
	out := make([]*model.Transaction, 0, len(list))
	for _, ofxTx := range list {
		txn := p.convertTransaction(ofxTx, accountID)
		if txn.Amount == 0 {
			slog.Debug("skipping zero-amount OFX transaction", "fitid", ofxTx.FiTID)
			continue
		}
		out = append(out, txn)
	}
	return out
}

// convertTransaction converts an OFX transaction to our model. The id is
// derived from the account and FITID, which banks keep stable across exports.
func (p *OFXParser) convertTransaction(ofxTx ofxgo.Transaction, accountID string) *model.Transaction {
	amount, _ := ofxTx.TrnAmt.Float64()
	trnType := fmt.Sprint(ofxTx.TrnType)

	category, ok := ofxTypeCategories[trnType]
	if !ok {
		category = UncategorizedCategory
	}

	return newTransaction(
		transactionID("ofx", p.userID, accountID, string(ofxTx.FiTID)),
		p.userID,
		amount,
		model.Transaction{
			Date:        ofxTx.DtPosted.Time,
			Category:    category,
			Description: extractMerchantName(ofxTx),
		},
	)
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// Accounts lists the distinct account ids in an OFX file.
func (p *OFXParser) Accounts(reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	add := func(id ofxgo.String) {
		if id != "" && !seen[string(id)] {
			seen[string(id)] = true
			accounts = append(accounts, string(id))
		}
	}
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankAcctFrom.AcctID)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.CCAcctFrom.AcctID)
		}
	}
	return accounts, nil
}
