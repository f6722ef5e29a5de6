package document

// Sample is a complete example document: an attack tree for the release
// signing key of a software project. It exercises every edge form (plain,
// tagged, backwards, not implemented), the implicit reality root and a
// filter.
const Sample = `title: Attack Tree for a Release Signing Key

facts:
- public_repo: Source repository is public
  from:
  - reality
- ci_has_key: CI runners can read the signing key
  from:
  - reality: '#legacy'

attacks:
- malicious_pr: Open a pull request with a poisoned build script
  from:
  - public_repo
- pr_runs_ci: Pull request triggers CI with secrets
  from:
  - malicious_pr
  - approval_required:
      backwards: true
- steal_maintainer_token: Phish a maintainer's access token
  from:
  - reality
- push_to_main: Push directly to the default branch
  from:
  - steal_maintainer_token
  - branch_protection:
      backwards: true
- exfiltrate_key: Exfiltrate the key from a runner
  from:
  - pr_runs_ci
  - push_to_main: '#yolosec'
  - ci_has_key
- compromise_hsm: Compromise the HSM vendor
  from:
  - hsm_signing

mitigations:
- approval_required: Require approval before CI runs for outside contributors
  from:
  - malicious_pr
- branch_protection: Protect the default branch
  from:
  - steal_maintainer_token
- hsm_signing: Sign releases inside an HSM
  from:
  - exfiltrate_key:
      implemented: false

goals:
- sign_malware: Ship malware signed with the release key
  from:
  - exfiltrate_key
  - compromise_hsm
- deface_site: Deface the project website
  from:
  - push_to_main

filter:
- sign_malware
`
