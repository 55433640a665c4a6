// Package transport turns raw aggregator HTTP requests into canonical build
// inputs and defines the layer contribution protocol.
//
// A Transport decodes a request into an immutable DecodedRequest, which is
// then passed explicitly to everything that builds or caches a layer:
//
//	req, err := tr.DecorateRequest(httpReq)
//	if errors.Is(err, transport.ErrRequestDecode) {
//		// reject with 400
//	}
//
// # Query Parameters
//
//   - modules: comma separated module ids, order significant
//   - count: optional module count, must match modules
//   - has: feature list, '*' separated, '!' prefix for false
//   - opt, optimize: none | whitespace | simple | advanced (default simple)
//   - re, expandRequire: expand require lists
//   - en, exportNames: export module names
//   - fn, showFilenames: annotate output with file names
//   - nc, noCache: bypass server and client caches
//   - rl, expandRequireLogging: log require list expansion in the browser
//   - locs, locales: comma separated BCP 47 locales
//   - required: comma separated bootstrap modules (only has! may be used)
//   - cv, configVarName: loader config variable (default "require")
//
// # Layer Contributions
//
// While a layer is assembled the builder walks a fixed sequence of
// LayerContributionType events and asks the transport for scaffolding to
// inject at each one. Sequencer enforces the order:
//
//	BEGIN_RESPONSE BEGIN_MODULES
//	  (BEFORE_FIRST_MODULE AFTER_MODULE (BEFORE_SUBSEQUENT_MODULE AFTER_MODULE)*)?
//	END_MODULES
//	[BEGIN_REQUIRED_MODULES
//	  (BEFORE_FIRST_REQUIRED_MODULE AFTER_REQUIRED_MODULE
//	   (BEFORE_SUBSEQUENT_REQUIRED_MODULE AFTER_REQUIRED_MODULE)*)?
//	 END_REQUIRED_MODULES]
//	END_RESPONSE
//
// The bracketed section appears only when the request names required
// modules.
//
// # Cache Key Generators
//
// A CacheKeyGenerator adds a discriminator to the layer cache key for
// request state the canonical fields do not cover. A transport whose
// contributions depend only on keyed fields returns no generators.
package transport
