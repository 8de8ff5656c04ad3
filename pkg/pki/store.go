package pki

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/systerel/s2opc-go/pkg/keymanager"
	"github.com/systerel/s2opc-go/pkg/types"
)

const updatedTrustListDir = "updatedTrustList"

// storeLayout names the four leaf directories under a trust store
// root.
type storeLayout struct {
	trustedCerts string
	trustedCRLs  string
	issuerCerts  string
	issuerCRLs   string
}

func layoutUnder(root string) storeLayout {
	return storeLayout{
		trustedCerts: filepath.Join(root, "trusted", "certs"),
		trustedCRLs:  filepath.Join(root, "trusted", "crl"),
		issuerCerts:  filepath.Join(root, "issuers", "certs"),
		issuerCRLs:   filepath.Join(root, "issuers", "crl"),
	}
}

// LoadFromStore populates the provider from disk. It tries
// <root>/updatedTrustList first; if that shadow directory is absent,
// empty, or malformed, it falls back to the primary <root> layout.
func (p *Provider) LoadFromStore() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.storeRoot == "" {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("pki provider has no store root configured"))
	}

	updated := filepath.Join(p.storeRoot, updatedTrustListDir)
	if dirHasEntries(layoutUnder(updated)) {
		if err := p.loadLayout(layoutUnder(updated)); err == nil {
			p.recomputeUnions()
			return nil
		}
	}
	if err := p.loadLayout(layoutUnder(p.storeRoot)); err != nil {
		return err
	}
	p.recomputeUnions()
	return nil
}

// NewProviderFromStore reads the on-disk trust store at root (trying
// the updatedTrustList shadow directory first) and constructs a
// Provider from what it finds. Unlike Provider.LoadFromStore, this
// does not require an already-constructed provider: it is the entry
// point for opening a store from scratch (e.g. from a CLI or at
// process start).
func NewProviderFromStore(root string, opts Options) (*Provider, error) {
	opts.StoreRoot = root

	updated := filepath.Join(root, updatedTrustListDir)
	layout := layoutUnder(root)
	if dirHasEntries(layoutUnder(updated)) {
		if loaded, err := loadLayoutStandalone(layoutUnder(updated)); err == nil {
			layout2 := loaded
			opts.TrustedCerts, opts.TrustedCRLs = layout2.trustedCerts, layout2.trustedCRLs
			opts.IssuerCerts, opts.IssuerCRLs = layout2.issuerCerts, layout2.issuerCRLs
			return NewProvider(opts)
		}
	}
	loaded, err := loadLayoutStandalone(layout)
	if err != nil {
		return nil, err
	}
	opts.TrustedCerts, opts.TrustedCRLs = loaded.trustedCerts, loaded.trustedCRLs
	opts.IssuerCerts, opts.IssuerCRLs = loaded.issuerCerts, loaded.issuerCRLs
	return NewProvider(opts)
}

// loadedChains is loadLayoutStandalone's result: the four chains
// loaded from one storeLayout, before any Provider exists to hold
// them.
type loadedChains struct {
	trustedCerts *keymanager.CertificateChain
	trustedCRLs  *keymanager.CRLChain
	issuerCerts  *keymanager.CertificateChain
	issuerCRLs   *keymanager.CRLChain
}

func loadLayoutStandalone(l storeLayout) (loadedChains, error) {
	trustedCerts, err := loadCertDir(l.trustedCerts)
	if err != nil {
		return loadedChains{}, err
	}
	trustedCRLs, err := loadCRLDir(l.trustedCRLs)
	if err != nil {
		return loadedChains{}, err
	}
	issuerCerts, err := loadCertDir(l.issuerCerts)
	if err != nil {
		return loadedChains{}, err
	}
	issuerCRLs, err := loadCRLDir(l.issuerCRLs)
	if err != nil {
		return loadedChains{}, err
	}
	return loadedChains{trustedCerts, trustedCRLs, issuerCerts, issuerCRLs}, nil
}

func dirHasEntries(l storeLayout) bool {
	for _, dir := range []string{l.trustedCerts, l.trustedCRLs, l.issuerCerts, l.issuerCRLs} {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) > 0 {
			return true
		}
	}
	return false
}

func (p *Provider) loadLayout(l storeLayout) error {
	trustedCerts, err := loadCertDir(l.trustedCerts)
	if err != nil {
		return err
	}
	trustedCRLs, err := loadCRLDir(l.trustedCRLs)
	if err != nil {
		return err
	}
	issuerCerts, err := loadCertDir(l.issuerCerts)
	if err != nil {
		return err
	}
	issuerCRLs, err := loadCRLDir(l.issuerCRLs)
	if err != nil {
		return err
	}
	p.trustedCerts = trustedCerts
	p.trustedCRLs = trustedCRLs
	p.issuerCerts = issuerCerts
	p.issuerCRLs = issuerCRLs
	return nil
}

func loadCertDir(dir string) (*keymanager.CertificateChain, error) {
	chain, _ := keymanager.NewCertificateChain()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return chain, nil
		}
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("read cert dir %s: %w", dir, err))
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		certs, err := keymanager.ParseCertificateFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		for _, c := range certs {
			if err := chain.Append(c); err != nil {
				return nil, err
			}
		}
	}
	return chain, nil
}

func loadCRLDir(dir string) (*keymanager.CRLChain, error) {
	chain := keymanager.NewCRLChain()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return chain, nil
		}
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("read crl dir %s: %w", dir, err))
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		crl, err := keymanager.ParseCRLFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if err := chain.Append(crl); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// SaveToStore writes the provider's trusted and issuer sets under the
// primary layout, thumbprint-named. When eraseExisting is set, every
// file already in a leaf directory is removed before writing. A
// partial write (bytes written != expected) is detected and the
// partial file removed.
func (p *Provider) SaveToStore(eraseExisting bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.storeRoot == "" {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("pki provider has no store root configured"))
	}
	l := layoutUnder(p.storeRoot)

	if err := writeCertDir(l.trustedCerts, p.trustedCerts, eraseExisting); err != nil {
		return err
	}
	if err := writeCRLDir(l.trustedCRLs, p.trustedCRLs, eraseExisting); err != nil {
		return err
	}
	if err := writeCertDir(l.issuerCerts, p.issuerCerts, eraseExisting); err != nil {
		return err
	}
	if err := writeCRLDir(l.issuerCRLs, p.issuerCRLs, eraseExisting); err != nil {
		return err
	}
	return nil
}

func ensureDir(dir string, eraseExisting bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("create dir %s: %w", dir, err))
	}
	if !eraseExisting {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("read dir %s: %w", dir, err))
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("remove %s: %w", e.Name(), err))
		}
	}
	return nil
}

func writeDERFile(path string, der []byte) error {
	n, err := writeFileReportCount(path, der)
	if err != nil {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("write %s: %w", path, err))
	}
	if n != len(der) {
		_ = os.Remove(path)
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("partial write to %s: wrote %d of %d bytes", path, n, len(der)))
	}
	return nil
}

func writeFileReportCount(path string, data []byte) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Write(data)
}

func writeCertDir(dir string, chain *keymanager.CertificateChain, eraseExisting bool) error {
	if err := ensureDir(dir, eraseExisting); err != nil {
		return err
	}
	for _, c := range chain.Certs() {
		path := filepath.Join(dir, c.Thumbprint()+".der")
		if err := writeDERFile(path, c.DER); err != nil {
			return err
		}
	}
	return nil
}

func writeCRLDir(dir string, chain *keymanager.CRLChain, eraseExisting bool) error {
	if err := ensureDir(dir, eraseExisting); err != nil {
		return err
	}
	for _, c := range chain.CRLs() {
		path := filepath.Join(dir, c.Thumbprint()+".der")
		if err := writeDERFile(path, c.DER); err != nil {
			return err
		}
	}
	return nil
}
