package cli

import apperrors "github.com/agbru/parglm/internal/errors"

var _ apperrors.ColorProvider = CLIColorProvider{}

// CLIColorProvider implements apperrors.ColorProvider with the current
// theme, so that orchestration and calibration print colored statuses.
type CLIColorProvider struct{}

// Yellow returns the warning color.
func (CLIColorProvider) Yellow() string { return ColorYellow() }

// Reset returns the reset code.
func (CLIColorProvider) Reset() string { return ColorReset() }
