package tokenizer

import (
	"fmt"

	"github.com/layer-3/renown/core"
)

// Claims extracts the claim set of any credential kind without checking
// signatures.
func (c *Codec) Claims(cred core.Credential) (core.Claims, error) {
	switch cred.Kind {
	case core.KindJWT:
		d, err := c.Decode(cred.JWT)
		if err != nil {
			return core.Claims{}, err
		}
		return d.Claims, nil
	case core.KindEIP712:
		if cred.EIP712 == nil {
			return core.Claims{}, fmt.Errorf("%w: missing eip712 body", core.ErrMalformedToken)
		}
		return EIP712Claims(cred.EIP712)
	default:
		return core.Claims{}, fmt.Errorf("%w: %q", core.ErrUnsupportedKind, cred.Kind)
	}
}
