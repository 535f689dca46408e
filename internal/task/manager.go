package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manager loads and validates operation definitions.
type Manager struct {
	chain  string
	logger *zap.Logger
}

// OperationsFile is the structure of the operations YAML file.
type OperationsFile struct {
	Operations []struct {
		Name             string  `yaml:"name"`
		Type             string  `yaml:"type"`
		Connector        string  `yaml:"connector"`
		Wallet           string  `yaml:"wallet"`
		BaseToken        string  `yaml:"base_token"`
		QuoteToken       string  `yaml:"quote_token"`
		Amount           float64 `yaml:"amount"`
		Side             string  `yaml:"side"`
		SlippagePct      float64 `yaml:"slippage_pct"`
		PoolAddress      string  `yaml:"pool_address"`
		PositionAddress  string  `yaml:"position_address"`
		LowerPrice       float64 `yaml:"lower_price"`
		UpperPrice       float64 `yaml:"upper_price"`
		BaseTokenAmount  float64 `yaml:"base_token_amount"`
		QuoteTokenAmount float64 `yaml:"quote_token_amount"`
		ComputeUnits     uint32  `yaml:"compute_units"`
		QuoteFirst       bool    `yaml:"quote_first"`
	} `yaml:"operations"`
}

// NewManager constructs a Manager. chain controls address validation.
func NewManager(chain string, logger *zap.Logger) *Manager {
	return &Manager{chain: chain, logger: logger.Named("task-manager")}
}

func parseOperationType(s string) (OperationType, error) {
	op := OperationType(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case OperationSwap, OperationOpenPosition, OperationClosePosition:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation type: %q", s)
	}
}

// LoadOperationsYAML reads operations from a YAML file. Invalid entries are
// logged and skipped; an error is returned only when nothing usable remains.
func (m *Manager) LoadOperationsYAML(path string) ([]*Operation, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for operations file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.ParseOperations(data)
}

// ParseOperations decodes and validates an operations document.
func (m *Manager) ParseOperations(data []byte) ([]*Operation, error) {
	var file OperationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Operations) == 0 {
		return nil, fmt.Errorf("no operations found in configuration")
	}

	ops := make([]*Operation, 0, len(file.Operations))
	for _, raw := range file.Operations {
		opType, err := parseOperationType(raw.Type)
		if err != nil {
			m.logger.Warn("Skipping invalid operation", zap.String("name", raw.Name), zap.Error(err))
			continue
		}

		op := &Operation{
			ID:               uuid.New().String(),
			Name:             raw.Name,
			Type:             opType,
			Connector:        raw.Connector,
			Wallet:           raw.Wallet,
			BaseToken:        raw.BaseToken,
			QuoteToken:       raw.QuoteToken,
			Amount:           raw.Amount,
			Side:             strings.ToUpper(raw.Side),
			SlippagePct:      raw.SlippagePct,
			PoolAddress:      raw.PoolAddress,
			PositionAddress:  raw.PositionAddress,
			LowerPrice:       raw.LowerPrice,
			UpperPrice:       raw.UpperPrice,
			BaseTokenAmount:  raw.BaseTokenAmount,
			QuoteTokenAmount: raw.QuoteTokenAmount,
			ComputeUnits:     raw.ComputeUnits,
			QuoteFirst:       raw.QuoteFirst,
			CreatedAt:        time.Now(),
		}

		if err := op.Validate(); err != nil {
			m.logger.Warn("Skipping invalid operation", zap.String("name", op.Name), zap.Error(err))
			continue
		}
		if err := m.validateAddresses(op); err != nil {
			m.logger.Warn("Skipping operation with invalid address", zap.String("name", op.Name), zap.Error(err))
			continue
		}

		ops = append(ops, op)
	}

	if len(ops) == 0 {
		return nil, fmt.Errorf("no valid operations loaded")
	}

	m.logger.Info("Loaded operations", zap.Int("count", len(ops)))
	return ops, nil
}

func (m *Manager) validateAddresses(op *Operation) error {
	if !strings.EqualFold(m.chain, "solana") {
		return nil
	}
	for field, addr := range map[string]string{
		"wallet":           op.Wallet,
		"pool_address":     op.PoolAddress,
		"position_address": op.PositionAddress,
	} {
		if addr == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, addr, err)
		}
	}
	return nil
}
